// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"os"
	"strings"
)

func LoadCatalog(path string) (*ServiceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat ServiceCatalog
	err = json.Unmarshal(data, &cat)
	return &cat, err
}

// Active returns the offerings currently open for applications.
func (c *ServiceCatalog) Active() []ServiceOffering {
	var out []ServiceOffering
	for _, svc := range c.Services {
		if svc.Active {
			out = append(out, svc)
		}
	}
	return out
}

// Find returns the offering matching name, case-insensitively.
func (c *ServiceCatalog) Find(name string) (ServiceOffering, bool) {
	for _, svc := range c.Services {
		if strings.EqualFold(svc.Name, name) {
			return svc, true
		}
	}
	return ServiceOffering{}, false
}
