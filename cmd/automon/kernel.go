package main

import (
	"fmt"
	"os"

	"automon/internal/config"
	"automon/internal/dtc"
	"automon/internal/kernel"
	"automon/internal/rulestore"
)

// openKernel loads configFile, connects a Kernel to the configured
// Transport, and replays any persisted rules from RuleStore. Callers
// must Disconnect the Kernel when done.
func openKernel() (*kernel.Kernel, *rulestore.Store, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	k, store, err := openKernelWithConfig(cfg)
	return k, store, err
}

// openKernelWithConfig is openKernel's body parameterised over an
// already-loaded Config, so callers that also need other Config
// sections (serve, for the server/MQTT settings) don't parse the file
// twice.
func openKernelWithConfig(cfg *config.Config) (*kernel.Kernel, *rulestore.Store, error) {
	var dict dtc.Dictionary
	if path := os.Getenv("AUTOMON_DTC_DICTIONARY"); path != "" {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			dict, _ = dtc.LoadDictionary(f)
		}
	}

	k := kernel.New(dict)
	if err := k.Connect(cfg.TransportConfig()); err != nil {
		return nil, nil, err
	}

	var store *rulestore.Store
	if cfg.RuleStore.Path != "" {
		var err error
		store, err = rulestore.Open(cfg.RuleStore.Path)
		if err != nil {
			k.Disconnect()
			return nil, nil, fmt.Errorf("automon: opening rule store: %w", err)
		}
		rules, err := store.All()
		if err != nil {
			k.Disconnect()
			store.Close()
			return nil, nil, err
		}
		for name, text := range rules {
			if err := k.AddRule(name, text); err != nil {
				fmt.Fprintf(os.Stderr, "automon: skipping persisted rule %q: %v\n", name, err)
			}
		}
	}

	return k, store, nil
}
