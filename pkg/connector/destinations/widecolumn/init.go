package widecolumn

import (
	"github.com/tablecast/tablecast/pkg/connector/registry"
)

func init() {
	if err := registry.RegisterDestination("widecolumn", NewDestination); err != nil {
		panic(err)
	}
	registry.RegisterInfo(&registry.ConnectorInfo{
		Name:        "widecolumn",
		Type:        "destination",
		Description: "Writes records as wide-column row mutations with on-demand table and family provisioning",
		Version:     "1.0.0",
		Capabilities: []string{
			"batch",
			"streaming",
			"table_provisioning",
			"timestamp_overlay",
		},
	})
}
