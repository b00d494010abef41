// pkg/catalog/schema.go
package catalog

// ServiceCatalog is the published list of government services citizens
// can apply for, loaded from a JSON file at startup.
type ServiceCatalog struct {
	Version     string            `json:"version"`
	LastUpdated string            `json:"lastUpdated"`
	Services    []ServiceOffering `json:"services"`
}

type ServiceOffering struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	Fee               float64  `json:"fee"`
	RequiredDocuments []string `json:"requiredDocuments"`
	ProcessingDays    int      `json:"processingDays"`
	Active            bool     `json:"active"`
}
