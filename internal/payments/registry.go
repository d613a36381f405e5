package payments

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"

	"posbridge/internal/httpclient"
)

// Settings is the flat key/value configuration of one provider, e.g.
// MERCHANT_ID or SECRET_KEY.
type Settings map[string]string

// Deps carries the shared collaborators handed to every adapter.
type Deps struct {
	Logger    *zap.SugaredLogger
	Transport http.RoundTripper
	Timeout   time.Duration
}

func (d Deps) logger() *zap.SugaredLogger {
	if d.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return d.Logger
}

func (d Deps) client(name string) *httpclient.Client {
	cfg := httpclient.DefaultConfig(name)
	cfg.Transport = d.Transport
	if d.Timeout > 0 {
		cfg.Timeout = d.Timeout
	}
	return httpclient.New(cfg, d.logger().With("provider", name))
}

// Factory builds a configured gateway.
type Factory func(settings Settings, deps Deps) (PaymentGateway, error)

func factory[T PaymentGateway](fn func(Settings, Deps) (T, error)) Factory {
	return func(s Settings, d Deps) (PaymentGateway, error) {
		g, err := fn(s, d)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

var factories = map[string]Factory{
	"anypay":    factory(NewAnyPayAdapter),
	"bufpay":    factory(NewBufPayAdapter),
	"cryptomus": factory(NewCryptomusAdapter),
	"esnekpos":  factory(NewEsnekPosAdapter),
	"fedapay":   factory(NewFedaPayAdapter),
	"iyzico":    factory(NewIyzicoAdapter),
	"papara":    factory(NewPaparaAdapter),
	"payeer":    factory(NewPayeerAdapter),
	"paymaya":   factory(NewPayMayaAdapter),
	"paytr":     factory(NewPayTRAdapter),
	"shopier":   factory(NewShopierAdapter),
	"vallet":    factory(NewValletAdapter),
}

// Available lists every provider name the registry can build.
func Available() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named gateway.
func Build(name string, settings Settings, deps Deps) (PaymentGateway, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return f(settings, deps)
}

// EnvSettings collects the process environment variables prefixed with the
// upper-cased provider name, e.g. PAYTR_MERCHANT_ID becomes MERCHANT_ID.
func EnvSettings(name string) Settings {
	return settingsFromMap(env.ToMap(os.Environ()), name)
}

func settingsFromMap(vars map[string]string, name string) Settings {
	prefix := strings.ToUpper(name) + "_"
	out := Settings{}
	for k, v := range vars {
		if key, ok := strings.CutPrefix(k, prefix); ok && key != "" {
			out[key] = v
		}
	}
	return out
}
