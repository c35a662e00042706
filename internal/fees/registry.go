package fees

import (
	"strings"

	"github.com/shopspring/decimal"

	"tradejournal/internal/domain"
)

// GenericBroker is used when no broker can be detected. Its schedule charges nothing
// unless the loaded tables define one.
const GenericBroker = "generic"

// DefaultContractSpec is returned for symbols the registry does not know.
var DefaultContractSpec = ContractSpec{Multiplier: 1, TickValue: 1}

// ContractSpec holds the per-instrument contract multiplier and tick value.
type ContractSpec struct {
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	TickValue  float64 `yaml:"tick_value" json:"tickValue"`
}

// Schedule is a broker's fee schedule, all amounts per contract/unit.
type Schedule struct {
	Broker                 string  `yaml:"-" json:"broker"`
	CommissionPerRoundTrip float64 `yaml:"commission_per_round_trip" json:"commissionPerRoundTrip"`
	EntryFeePerUnit        float64 `yaml:"entry_fee_per_unit" json:"entryFeePerUnit"`
	ExitFeePerUnit         float64 `yaml:"exit_fee_per_unit" json:"exitFeePerUnit"`
}

// Breakdown is the fee amount charged for one trade, each part rounded to cents.
type Breakdown struct {
	Commission decimal.Decimal
	EntryFees  decimal.Decimal
	ExitFees   decimal.Decimal
}

// Total returns commission plus entry and exit fees.
func (b Breakdown) Total() decimal.Decimal {
	return b.Commission.Add(b.EntryFees).Add(b.ExitFees)
}

// Compute applies the schedule to quantity contracts.
func (s Schedule) Compute(quantity float64) Breakdown {
	q := domain.Dec(quantity)
	return Breakdown{
		Commission: q.Mul(domain.Dec(s.CommissionPerRoundTrip)).Round(2),
		EntryFees:  q.Mul(domain.Dec(s.EntryFeePerUnit)).Round(2),
		ExitFees:   q.Mul(domain.Dec(s.ExitFeePerUnit)).Round(2),
	}
}

// Tables is the read-only configuration a Registry is built from.
type Tables struct {
	Contracts    map[string]ContractSpec `yaml:"contracts"`
	Brokers      map[string]Schedule     `yaml:"brokers"`
	DataSources  map[string]string       `yaml:"data_sources"`  // data source tag -> broker
	AccountTypes map[string]string       `yaml:"account_types"` // account type -> broker
}

// Registry answers contract and fee lookups. It never mutates its tables.
type Registry struct {
	contracts    map[string]ContractSpec
	brokers      map[string]Schedule
	dataSources  map[string]string
	accountTypes map[string]string
}

// NewRegistry copies t into a new Registry, normalizing keys.
func NewRegistry(t Tables) *Registry {
	r := &Registry{
		contracts:    make(map[string]ContractSpec, len(t.Contracts)),
		brokers:      make(map[string]Schedule, len(t.Brokers)),
		dataSources:  make(map[string]string, len(t.DataSources)),
		accountTypes: make(map[string]string, len(t.AccountTypes)),
	}
	for sym, spec := range t.Contracts {
		r.contracts[strings.ToUpper(strings.TrimSpace(sym))] = spec
	}
	for name, s := range t.Brokers {
		key := normalizeBroker(name)
		s.Broker = key
		r.brokers[key] = s
	}
	for tag, broker := range t.DataSources {
		r.dataSources[strings.ToLower(strings.TrimSpace(tag))] = normalizeBroker(broker)
	}
	for typ, broker := range t.AccountTypes {
		r.accountTypes[strings.ToUpper(strings.TrimSpace(typ))] = normalizeBroker(broker)
	}
	return r
}

// LookupContractSpec returns the contract spec for symbol, or DefaultContractSpec
// when the symbol (and its root) is unknown.
func (r *Registry) LookupContractSpec(symbol string) ContractSpec {
	spec, _ := r.contractSpec(symbol)
	return spec
}

// KnownSymbol reports whether symbol resolves to a configured contract.
func (r *Registry) KnownSymbol(symbol string) bool {
	_, ok := r.contractSpec(symbol)
	return ok
}

func (r *Registry) contractSpec(symbol string) (ContractSpec, bool) {
	sym := cleanSymbol(symbol)
	if spec, ok := r.contracts[sym]; ok {
		return spec, true
	}
	if spec, ok := r.contracts[RootSymbol(sym)]; ok {
		return spec, true
	}
	return DefaultContractSpec, false
}

// LookupFeeSchedule returns the schedule for broker, falling back to the generic schedule.
func (r *Registry) LookupFeeSchedule(broker string) Schedule {
	if s, ok := r.brokers[normalizeBroker(broker)]; ok {
		return s
	}
	if s, ok := r.brokers[GenericBroker]; ok {
		return s
	}
	return Schedule{Broker: GenericBroker}
}

// KnownBroker reports whether broker has a configured schedule.
func (r *Registry) KnownBroker(broker string) bool {
	_, ok := r.brokers[normalizeBroker(broker)]
	return ok
}

// DetectBroker maps an account type and data source tag to a broker id.
// The data source wins over the account type; GenericBroker is returned when neither matches.
func (r *Registry) DetectBroker(accountType domain.AccountType, source domain.DataSource) string {
	if b, ok := r.dataSources[strings.ToLower(strings.TrimSpace(string(source)))]; ok && b != "" {
		return b
	}
	if b, ok := r.accountTypes[strings.ToUpper(strings.TrimSpace(string(accountType)))]; ok && b != "" {
		return b
	}
	return GenericBroker
}

// ApplicableSchedule returns the schedule charged for a trade in market through broker.
// Broker schedules are per-contract futures schedules; other markets use the generic schedule.
func (r *Registry) ApplicableSchedule(broker string, market domain.Market) Schedule {
	if market != domain.MarketFutures {
		return r.LookupFeeSchedule(GenericBroker)
	}
	return r.LookupFeeSchedule(broker)
}

// monthCodes are the futures delivery month letters.
const monthCodes = "FGHJKMNQUVXZ"

// RootSymbol strips a futures month/year suffix ("MNQH25" -> "MNQ", "ESZ4" -> "ES").
// Symbols without a recognizable suffix are returned unchanged.
func RootSymbol(symbol string) string {
	sym := cleanSymbol(symbol)
	if i := strings.IndexAny(sym, " ."); i > 0 {
		sym = sym[:i]
	}
	n := len(sym)
	digits := 0
	for digits < 2 && digits < n && isDigit(sym[n-1-digits]) {
		digits++
	}
	if digits == 0 || n-digits < 2 {
		return sym
	}
	month := sym[n-digits-1]
	if !strings.ContainsRune(monthCodes, rune(month)) {
		return sym
	}
	return sym[:n-digits-1]
}

func cleanSymbol(symbol string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(symbol)), "/")
}

func normalizeBroker(broker string) string {
	return strings.ToLower(strings.TrimSpace(broker))
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
