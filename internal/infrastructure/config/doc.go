// Package config handles loading and validating Netwatch Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (and an optional .env file)
//   - Validation of required fields
//   - Default value handling
//
// The file only holds process-level settings. The router connection and
// polling parameters live in the system_config table; the router section
// here seeds that row on first start and is ignored afterwards.
//
// Security Considerations:
//   - Sensitive values (router password, MQTT password, InfluxDB token)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
