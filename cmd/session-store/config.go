package main

import (
	"context"
	"flag"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath

	notifierEndpoint
	allowedOrigins

	adminUsername
	adminEmail
	adminPassword
)

func DefaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",
		configPath:    "/opt/diwise/config/sessions.yaml",
		opaPath:       "/opt/diwise/config/authz.rego",
	}
}

func parseExternalConfig(ctx context.Context, flags FlagMap) FlagMap {

	// Allow environment variables to override certain defaults
	envOrDef := env.GetVariableOrDefault
	flags[listenAddress] = envOrDef(ctx, "LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef(ctx, "SERVICE_PORT", flags[servicePort])
	flags[configPath] = envOrDef(ctx, "SESSIONS_CONFIG_PATH", flags[configPath])
	flags[opaPath] = envOrDef(ctx, "POLICY_FILE", flags[opaPath])
	flags[notifierEndpoint] = envOrDef(ctx, "NOTIFIER_ENDPOINT", flags[notifierEndpoint])
	flags[allowedOrigins] = envOrDef(ctx, "CORS_ALLOWED_ORIGINS", flags[allowedOrigins])
	flags[adminUsername] = envOrDef(ctx, "ADMIN_USERNAME", flags[adminUsername])
	flags[adminEmail] = envOrDef(ctx, "ADMIN_EMAIL", flags[adminEmail])
	flags[adminPassword] = envOrDef(ctx, "ADMIN_PASSWORD", flags[adminPassword])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "session configuration file", apply(configPath))
	flag.Func("policies", "an authorization policy file", apply(opaPath))
	flag.Parse()

	return flags
}

func (f FlagMap) origins() []string {
	origins := []string{}

	for _, o := range strings.Split(f[allowedOrigins], ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return origins
}
