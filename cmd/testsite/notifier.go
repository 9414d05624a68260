package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/vx-labs/testsite/testsite/auth"
	"github.com/vx-labs/testsite/testsite/transport"
)

func getNotifier(config *viper.Viper, console *transport.Console) (auth.Notifier, error) {
	providers := notifierProviders(config)
	channels := make([]auth.Notifier, 0, len(providers))
	for _, provider := range providers {
		switch provider {
		case "none":
		case "log":
			channels = append(channels, auth.LogNotifier())
		case "console":
			channels = append(channels, auth.ConsoleNotifier(os.Stdout))
		case "websocket":
			channels = append(channels, console)
		default:
			return nil, errors.Errorf("unknown notifier provided: %q", provider)
		}
	}
	if len(channels) == 0 {
		return auth.NoneNotifier(), nil
	}
	return auth.Notifiers(channels...), nil
}

// notifierProviders accepts both repeated flags and a comma separated
// TESTSITE_NOTIFIER value.
func notifierProviders(config *viper.Viper) []string {
	out := []string{}
	for _, entry := range config.GetStringSlice("notifier") {
		for _, provider := range strings.Split(entry, ",") {
			if provider = strings.TrimSpace(provider); provider != "" {
				out = append(out, provider)
			}
		}
	}
	return out
}

func usesNotifier(config *viper.Viper, name string) bool {
	for _, provider := range notifierProviders(config) {
		if provider == name {
			return true
		}
	}
	return false
}
