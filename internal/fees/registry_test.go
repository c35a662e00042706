package fees

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
)

func TestRootSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ES", "ES"},
		{"ESZ4", "ES"},
		{"MNQH25", "MNQ"},
		{"/ES", "ES"},
		{"mesm24", "MES"},
		{"ES 12-24", "ES"},
		{"M2K", "M2K"},
		{"AAPL", "AAPL"},
		{"Z4", "Z4"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RootSymbol(tt.in))
		})
	}
}

func TestRegistry_LookupContractSpec(t *testing.T) {
	r := NewRegistry(DefaultTables())

	assert.Equal(t, ContractSpec{Multiplier: 2, TickValue: 0.5}, r.LookupContractSpec("MNQH25"))
	assert.Equal(t, ContractSpec{Multiplier: 50, TickValue: 12.5}, r.LookupContractSpec("es"))
	assert.True(t, r.KnownSymbol("ESZ4"))

	spec := r.LookupContractSpec("WHATEVER")
	assert.Equal(t, DefaultContractSpec, spec)
	assert.False(t, r.KnownSymbol("WHATEVER"))
}

func TestRegistry_LookupFeeSchedule(t *testing.T) {
	r := NewRegistry(DefaultTables())

	s := r.LookupFeeSchedule("Tradovate")
	assert.Equal(t, "tradovate", s.Broker)
	assert.Equal(t, 1.34, s.CommissionPerRoundTrip)

	unknown := r.LookupFeeSchedule("nobody")
	assert.Equal(t, GenericBroker, unknown.Broker)
	assert.Zero(t, unknown.CommissionPerRoundTrip)

	// Tables without a generic entry still yield a zero schedule.
	bare := NewRegistry(Tables{})
	assert.Equal(t, Schedule{Broker: GenericBroker}, bare.LookupFeeSchedule("nobody"))
}

func TestRegistry_DetectBroker(t *testing.T) {
	r := NewRegistry(DefaultTables())

	tests := []struct {
		name        string
		accountType domain.AccountType
		source      domain.DataSource
		want        string
	}{
		{"data source wins", domain.AccountEvaluation, domain.SourceRithmicCSV, "rithmic"},
		{"account type fallback", domain.AccountFunded, domain.SourceManual, "tradovate"},
		{"no match", domain.AccountCustom, domain.SourceManual, GenericBroker},
		{"empty inputs", "", "", GenericBroker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.DetectBroker(tt.accountType, tt.source))
		})
	}
}

func TestRegistry_ApplicableSchedule(t *testing.T) {
	r := NewRegistry(DefaultTables())
	assert.Equal(t, "tradovate", r.ApplicableSchedule("tradovate", domain.MarketFutures).Broker)
	assert.Equal(t, GenericBroker, r.ApplicableSchedule("tradovate", domain.MarketStocks).Broker)
}

func TestSchedule_Compute(t *testing.T) {
	s := Schedule{CommissionPerRoundTrip: 1.34, EntryFeePerUnit: 0.05, ExitFeePerUnit: 0.05}
	b := s.Compute(2)
	assert.Equal(t, "2.68", b.Commission.StringFixed(2))
	assert.Equal(t, "0.10", b.EntryFees.StringFixed(2))
	assert.Equal(t, "0.10", b.ExitFees.StringFixed(2))
	assert.Equal(t, "2.88", b.Total().StringFixed(2))
}

func TestRegistry_InjectedTablesAreIsolated(t *testing.T) {
	tables := DefaultTables()
	r := NewRegistry(tables)
	tables.Brokers["tradovate"] = Schedule{CommissionPerRoundTrip: 99}

	assert.Equal(t, 1.34, r.LookupFeeSchedule("tradovate").CommissionPerRoundTrip)
	assert.Equal(t, 1.34, DefaultTables().Brokers["tradovate"].CommissionPerRoundTrip)
}

func TestLoadTables(t *testing.T) {
	const doc = `
contracts:
  ES: {multiplier: 50, tick_value: 12.5}
brokers:
  acme: {commission_per_round_trip: 2.5, entry_fee_per_unit: 0.1, exit_fee_per_unit: 0.1}
data_sources:
  acme_csv: acme
account_types:
  CUSTOM: acme
`
	path := filepath.Join(t.TempDir(), "fees.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	r := NewRegistry(tables)
	assert.Equal(t, "acme", r.DetectBroker(domain.AccountCustom, domain.SourceManual))
	assert.Equal(t, "acme", r.DetectBroker(domain.AccountEvaluation, "ACME_CSV"))
	assert.Equal(t, 2.5, r.LookupFeeSchedule("acme").CommissionPerRoundTrip)
	assert.Equal(t, 50.0, r.LookupContractSpec("ESH5").Multiplier)
}

func TestParseTables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "contracts: ["},
		{"zero multiplier", "contracts:\n  ES: {multiplier: 0}\n"},
		{"negative fee", "brokers:\n  x: {commission_per_round_trip: -1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTables_MissingFile(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
