package main

import (
	"fmt"

	"automon/internal/config"
	"automon/internal/datastore"
)

// openDatastore opens the configured CombinedStore, or returns (nil, nil)
// when no SQLite path is configured — datastore persistence is optional,
// the same way RuleStore and MQTT are optional in "serve" and "rule".
func openDatastore(cfg *config.Config) (datastore.Store, error) {
	if cfg.Datastore.SQLite.Path == "" {
		return nil, nil
	}
	ds, err := datastore.NewStore(&datastore.Config{
		SQLitePath:     cfg.Datastore.SQLite.Path,
		InfluxDBURL:    cfg.Datastore.InfluxDB.URL,
		InfluxDBOrg:    cfg.Datastore.InfluxDB.Org,
		InfluxDBToken:  cfg.Datastore.InfluxDB.Token,
		InfluxDBBucket: cfg.Datastore.InfluxDB.Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("automon: opening datastore: %w", err)
	}
	return ds, nil
}
