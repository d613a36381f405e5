package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailable(t *testing.T) {
	assert.Equal(t, []string{
		"anypay", "bufpay", "cryptomus", "esnekpos", "fedapay", "iyzico",
		"papara", "payeer", "paymaya", "paytr", "shopier", "vallet",
	}, Available())
}

func TestBuild(t *testing.T) {
	gw, err := Build("PayTR", Settings{"MERCHANT_ID": "1", "MERCHANT_KEY": "k", "MERCHANT_SALT": "s"}, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &PayTRAdapter{}, gw)

	_, err = Build("stripe", nil, Deps{})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = Build("paytr", Settings{"MERCHANT_ID": "1"}, Deps{})
	assert.EqualError(t, err, "paytr: missing required field: MERCHANT_KEY")
}

func TestEnvSettings(t *testing.T) {
	t.Setenv("CRYPTOMUS_MERCHANT_ID", "m-1")
	t.Setenv("CRYPTOMUS_PAYMENT_KEY", "pk")
	t.Setenv("CRYPTOMUSX_OTHER", "ignored")

	s := EnvSettings("cryptomus")
	assert.Equal(t, "m-1", s["MERCHANT_ID"])
	assert.Equal(t, "pk", s["PAYMENT_KEY"])
	assert.NotContains(t, s, "OTHER")

	gw, err := Build("cryptomus", s, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &CryptomusAdapter{}, gw)
}

func TestSettingsFromMap(t *testing.T) {
	s := settingsFromMap(map[string]string{"PAYTR_": "x", "PAYTR_MERCHANT_ID": "1", "PATH": "/bin"}, "paytr")
	assert.Equal(t, Settings{"MERCHANT_ID": "1"}, s)
}
