package internal

import "github.com/asticode/go-astits"

type ServiceInfo struct {
	ServiceID    uint16 `json:"serviceId"`
	ServiceName  string `json:"serviceName,omitempty"`
	ProviderName string `json:"providerName,omitempty"`
}

type SdtInfo struct {
	Services []ServiceInfo `json:"SDT"`
}

// PrintSdtInfo prints the service and provider names of a TS input.
func (p *JsonPrinter) PrintSdtInfo(sdt *astits.SDTData, show bool) {
	p.Print(ToSdtInfo(sdt), show)
}

func ToSdtInfo(sdt *astits.SDTData) SdtInfo {
	info := SdtInfo{Services: make([]ServiceInfo, 0, len(sdt.Services))}
	for _, s := range sdt.Services {
		si := ServiceInfo{ServiceID: s.ServiceID}
		for _, d := range s.Descriptors {
			if d.Tag == astits.DescriptorTagService && d.Service != nil {
				si.ServiceName = string(d.Service.Name)
				si.ProviderName = string(d.Service.Provider)
			}
		}
		info.Services = append(info.Services, si)
	}
	return info
}
