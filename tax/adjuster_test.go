package tax

import (
	"math"
	"testing"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

type fakeCompanies struct {
	list     []host.Company
	added    map[host.EntityID][]float64
	rateSets map[host.EntityID][]float64
}

func newFakeCompanies(list ...host.Company) *fakeCompanies {
	return &fakeCompanies{
		list:     list,
		added:    make(map[host.EntityID][]float64),
		rateSets: make(map[host.EntityID][]float64),
	}
}

func (f *fakeCompanies) Companies() []host.Company { return f.list }

func (f *fakeCompanies) AddTaxableIncome(id host.EntityID, amount float64) {
	f.added[id] = append(f.added[id], amount)
	for i := range f.list {
		if f.list[i].ID == id {
			f.list[i].UntaxedIncome = math.Max(0, f.list[i].UntaxedIncome+amount)
		}
	}
}

func (f *fakeCompanies) SetAverageTaxRate(id host.EntityID, rate float64) {
	f.rateSets[id] = append(f.rateSets[id], rate)
	for i := range f.list {
		if f.list[i].ID == id {
			f.list[i].AverageRate = rate
		}
	}
}

type fakePolicy struct {
	rates map[host.TaxArea]float64
}

func (f *fakePolicy) Rate(area host.TaxArea, _ host.DistrictID) float64 {
	return f.rates[area]
}

type fakeProfit struct {
	perDay map[host.EntityID]float64
}

func (f *fakeProfit) ProfitPerDay(c host.Company) (float64, bool) {
	v, ok := f.perDay[c.ID]
	return v, ok
}

func taxConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	return cfg
}

func taxTick(tick int64) host.TickInfo {
	return host.TickInfo{Tick: tick, UpdatesPerDay: 24, RentUpdatesPerDay: 2}
}

// steelCompany earns 2400/day (100/tick) and pays 40 rent per rent
// period (20/tick), netting 80 per tick.
func steelCompany() host.Company {
	return host.Company{
		ID:            1,
		Employees:     12,
		Efficiency:    1,
		Output:        econ.ResourceSteel,
		Rent:          40,
		UntaxedIncome: 500,
		AverageRate:   10,
	}
}

func TestDisabledIsInert(t *testing.T) {
	cfg := taxConfig(t)
	cfg.Tax.Enabled = false
	a := New(cfg)
	dir := newFakeCompanies(steelCompany())
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}

	traces := a.Adjust(dir, nil, profit, taxTick(1))
	if traces != nil {
		t.Errorf("disabled adjuster produced traces: %+v", traces)
	}
	if len(dir.added[1]) != 0 || a.Tracked() != 0 {
		t.Error("disabled adjuster mutated state")
	}
}

func TestSkipsCompaniesWithoutRosterOrRecipe(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	empty := steelCompany()
	empty.Employees = 0
	unresolved := steelCompany()
	unresolved.ID = 2
	unresolved.Output = econ.ResourceNone
	dir := newFakeCompanies(empty, unresolved)
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400, 2: 2400}}

	if traces := a.Adjust(dir, nil, profit, taxTick(1)); len(traces) != 0 {
		t.Errorf("skipped companies produced traces: %+v", traces)
	}
}

func TestFirstSightUsesCurrentAccumulator(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	dir := newFakeCompanies(steelCompany())
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}

	traces := a.Adjust(dir, nil, profit, taxTick(1))
	if len(traces) != 1 {
		t.Fatalf("got %d traces, want 1", len(traces))
	}
	tr := traces[0]
	if math.Abs(tr.ProfitPerTick-100) > 1e-9 {
		t.Errorf("profit per tick = %v, want 100", tr.ProfitPerTick)
	}
	if math.Abs(tr.RentPerTick-20) > 1e-9 {
		t.Errorf("rent per tick = %v, want 20", tr.RentPerTick)
	}
	if math.Abs(tr.NetIncome-80) > 1e-9 {
		t.Errorf("net income = %v, want 80", tr.NetIncome)
	}
	// First sight: the tracked base equals the host accumulator, so the
	// full net income lands as the adjustment.
	if math.Abs(tr.Adjustment-80) > 1e-9 {
		t.Errorf("adjustment = %v, want 80", tr.Adjustment)
	}
	st, _ := a.State(1)
	if math.Abs(st.LastUntaxedIncome-580) > 1e-9 {
		t.Errorf("tracked untaxed = %v, want 580", st.LastUntaxedIncome)
	}
}

func TestAdjustmentReplacesVanillaDelta(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	dir := newFakeCompanies(steelCompany())
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}

	a.Adjust(dir, nil, profit, taxTick(1)) // tracked untaxed now 580

	// The host attributes 50 of its own income before the next tick.
	dir.list[0].UntaxedIncome += 50
	traces := a.Adjust(dir, nil, profit, taxTick(2))
	if len(traces) != 1 {
		t.Fatalf("got %d traces, want 1", len(traces))
	}
	if math.Abs(traces[0].Adjustment-30) > 1e-9 {
		t.Errorf("adjustment = %v, want net 80 minus vanilla delta 50 = 30", traces[0].Adjustment)
	}
	st, _ := a.State(1)
	if math.Abs(st.LastUntaxedIncome-660) > 1e-9 {
		t.Errorf("tracked untaxed = %v, want 660", st.LastUntaxedIncome)
	}
}

func TestOverAttributedIncomeIsClawedBack(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	dir := newFakeCompanies(steelCompany())
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}

	a.Adjust(dir, nil, profit, taxTick(1))

	// Host gross attribution far exceeds true profit.
	dir.list[0].UntaxedIncome += 500
	traces := a.Adjust(dir, nil, profit, taxTick(2))
	if math.Abs(traces[0].Adjustment-(-420)) > 1e-9 {
		t.Errorf("adjustment = %v, want 80 - 500 = -420", traces[0].Adjustment)
	}
	if got := dir.list[0].UntaxedIncome; math.Abs(got-660) > 1e-9 {
		t.Errorf("host accumulator = %v, want 660", got)
	}
}

func TestRateBlendsTowardAreaRate(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	dir := newFakeCompanies(steelCompany())
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}
	policy := &fakePolicy{rates: map[host.TaxArea]float64{host.TaxAreaIndustrial: 20}}

	traces := a.Adjust(dir, policy, profit, taxTick(1))
	if traces[0].Area != host.TaxAreaIndustrial {
		t.Errorf("area = %v, want industrial for steel", traces[0].Area)
	}
	// weight = 80 / (80 + 500) = 0.1379; lerp(10, 20, w) = 11.38 -> 11.
	if len(dir.rateSets[1]) != 1 || dir.rateSets[1][0] != 11 {
		t.Errorf("rate writes = %v, want one write of 11", dir.rateSets[1])
	}
	if traces[0].AverageRate != 11 {
		t.Errorf("trace rate = %v, want 11", traces[0].AverageRate)
	}
}

func TestNoRateBlendWithoutNetIncome(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	c := steelCompany()
	c.Rent = 9600 // rent per tick 4800 swamps profit
	dir := newFakeCompanies(c)
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}
	policy := &fakePolicy{rates: map[host.TaxArea]float64{host.TaxAreaIndustrial: 20}}

	traces := a.Adjust(dir, policy, profit, taxTick(1))
	if len(traces) != 1 {
		t.Fatalf("got %d traces, want 1", len(traces))
	}
	if traces[0].NetIncome != 0 {
		t.Errorf("net income = %v, want floored 0", traces[0].NetIncome)
	}
	if len(dir.rateSets[1]) != 0 {
		t.Errorf("rate writes = %v, want none at zero net", dir.rateSets[1])
	}
}

func TestNegativeRentTreatedAsZero(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	c := steelCompany()
	c.Rent = -100
	dir := newFakeCompanies(c)
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400}}

	traces := a.Adjust(dir, nil, profit, taxTick(1))
	if traces[0].RentPerTick != 0 {
		t.Errorf("rent per tick = %v, want 0 for negative rent", traces[0].RentPerTick)
	}
	if math.Abs(traces[0].NetIncome-100) > 1e-9 {
		t.Errorf("net income = %v, want full profit 100", traces[0].NetIncome)
	}
}

func TestUnresolvableProfitSkipsCompany(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	dir := newFakeCompanies(steelCompany())
	profit := &fakeProfit{perDay: map[host.EntityID]float64{}} // no entry for 1

	if traces := a.Adjust(dir, nil, profit, taxTick(1)); len(traces) != 0 {
		t.Errorf("unresolvable profit produced traces: %+v", traces)
	}
	if len(dir.added[1]) != 0 {
		t.Error("unresolvable profit still adjusted income")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		r    econ.Resource
		want host.TaxArea
	}{
		{econ.ResourceSoftware, host.TaxAreaOffice},
		{econ.ResourceFinance, host.TaxAreaOffice},
		{econ.ResourceMeals, host.TaxAreaCommercial},
		{econ.ResourceLodging, host.TaxAreaCommercial},
		{econ.ResourceSteel, host.TaxAreaIndustrial},
		{econ.ResourceGrain, host.TaxAreaIndustrial},
	}
	for _, tt := range tests {
		if got := Classify(tt.r); got != tt.want {
			t.Errorf("Classify(%s) = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestPruneDropsDepartedCompanies(t *testing.T) {
	cfg := taxConfig(t)
	a := New(cfg)
	second := steelCompany()
	second.ID = 2
	dir := newFakeCompanies(steelCompany(), second)
	profit := &fakeProfit{perDay: map[host.EntityID]float64{1: 2400, 2: 2400}}

	a.Adjust(dir, nil, profit, taxTick(1))
	if a.Tracked() != 2 {
		t.Fatalf("tracked = %d, want 2", a.Tracked())
	}

	a.Prune(map[host.EntityID]struct{}{1: {}})
	if _, ok := a.State(2); ok {
		t.Error("departed company still tracked")
	}
	if _, ok := a.State(1); !ok {
		t.Error("active company was pruned")
	}
}
