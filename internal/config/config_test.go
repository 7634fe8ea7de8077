package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"nft-auction-house/internal/model"
)

func TestDefaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, ":4000", c.Server.Addr)
	require.Equal(t, 30*time.Second, c.Server.RequestTimeout)

	st, err := c.Market.Settings()
	require.NoError(t, err)
	require.EqualValues(t, 300, st.MinOrderDuration)
	require.EqualValues(t, 20, st.MinBidValue)
	require.EqualValues(t, 31_536_000, st.MaxDuration)
	require.EqualValues(t, 250, st.ExternalFeeBps)
	require.Equal(t, st.Owner, st.Recipient)
	require.Equal(t, model.Native, st.PaymentToken)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUCTION_SERVER_ADDR", ":9999")
	t.Setenv("AUCTION_MARKET_MIN_BID_VALUE", "5")
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, ":9999", c.Server.Addr)
	require.EqualValues(t, 5, c.Market.MinBidValue)
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
addr = ":8080"

[auth]
admins = ["0x00000000000000000000000000000000000000aa"]

[market]
owner = "0x00000000000000000000000000000000000000bb"
recipient = "0x00000000000000000000000000000000000000cc"
payment_token = "0x00000000000000000000000000000000000000dd"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, ":8080", c.Server.Addr)

	admins, err := c.Auth.AdminAddresses()
	require.NoError(t, err)
	require.Equal(t, []model.Address{common.HexToAddress("0xaa")}, admins)

	st, err := c.Market.Settings()
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xbb"), st.Owner)
	require.Equal(t, common.HexToAddress("0xcc"), st.Recipient)
	require.Equal(t, common.HexToAddress("0xdd"), st.PaymentToken)
}

func TestInvalid(t *testing.T) {
	t.Setenv("AUCTION_MARKET_OWNER", "not-an-address")
	_, err := Load(viper.New(), "")
	require.Error(t, err)
}

func TestShortSecret(t *testing.T) {
	t.Setenv("AUCTION_AUTH_SECRET", "short")
	_, err := Load(viper.New(), "")
	require.Error(t, err)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLogBuild(t *testing.T) {
	l, err := LogConfig{Level: "debug"}.Build()
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = LogConfig{Level: "loud"}.Build()
	require.Error(t, err)
}
