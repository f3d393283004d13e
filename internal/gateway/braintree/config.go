package braintree

import (
	"fmt"
	"time"

	bt "github.com/braintree-go/braintree-go"
)

type Environment string

const (
	Sandbox    Environment = "Sandbox"
	Production Environment = "Production"
)

var environments = map[Environment]bt.Environment{
	Sandbox:    bt.Sandbox,
	Production: bt.Production,
}

func ParseEnvironment(s string) (Environment, error) {
	env := Environment(s)
	if _, ok := environments[env]; !ok {
		return "", fmt.Errorf("unknown braintree environment %q", s)
	}
	return env, nil
}

// Config is built once at startup and handed to NewClient.
type Config struct {
	Environment Environment
	MerchantID  string
	PublicKey   string
	PrivateKey  string
	Timeout     time.Duration

	// BaseURL overrides the environment URL.
	BaseURL string

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

func (c Config) environment() (bt.Environment, error) {
	if c.BaseURL != "" {
		return bt.NewEnvironment(c.BaseURL), nil
	}
	env, ok := environments[c.Environment]
	if !ok {
		return env, fmt.Errorf("unknown braintree environment %q", c.Environment)
	}
	return env, nil
}
