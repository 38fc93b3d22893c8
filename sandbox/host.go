package sandbox

import (
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

var _ host.Host = (*City)(nil)

// The accessors below satisfy host.Host. The city backs every
// subsystem itself, so none of them ever return nil; the two directory
// views get tiny adapter types because their method names collide with
// the accessors.

func (c *City) Clock() host.TickInfo {
	return host.TickInfo{
		Tick:              c.tick,
		UpdatesPerDay:     c.cfg.Sandbox.UpdatesPerDay,
		RentUpdatesPerDay: c.cfg.Sandbox.RentUpdatesPerDay,
	}
}

func (c *City) Signals() host.MarketSignals { return c }

func (c *City) Census() host.Census { return c }

func (c *City) Wages() host.WageBandAccessor { return c }

func (c *City) Prices() host.PriceCatalog { return c }

func (c *City) Workplaces() host.WorkplaceDirectory { return siteDirectory{c} }

func (c *City) Companies() host.CompanyDirectory { return taxRoll{c} }

func (c *City) Policy() host.TaxPolicy { return c }

func (c *City) Ledger() host.Ledger { return c }

func (c *City) Profit() host.ProfitModel { return c }

// ProductionConsumption implements host.MarketSignals from the
// period aggregates Step rebuilds every tick.
func (c *City) ProductionConsumption(r econ.Resource) (float64, float64, bool) {
	produced, pOK := c.produced[r]
	consumed, cOK := c.consumed[r]
	if !pOK && !cOK {
		return 0, 0, false
	}
	return produced, consumed, true
}

// Trade reports a synthetic external balance: a fixed share of the
// period imbalance clears against the outside world.
func (c *City) Trade(r econ.Resource) (float64, float64, bool) {
	produced, consumed, ok := c.ProductionConsumption(r)
	if !ok {
		return 0, 0, false
	}
	balance := tradeShare * (produced - consumed)
	return balance, balance * c.vanilla[r], true
}

// LaborStats implements host.Census.
func (c *City) LaborStats() (host.LaborStats, bool) {
	return c.stats, c.censusDone
}

// Wage implements host.WageBandAccessor.
func (c *City) Wage(level int) int {
	if level < 0 || level >= host.WageLevels {
		return 0
	}
	return c.bands[level]
}

// SetWage implements host.WageBandAccessor.
func (c *City) SetWage(level int, wage int) {
	if level < 0 || level >= host.WageLevels {
		return
	}
	c.bands[level] = wage
}

// VanillaPrice implements host.PriceCatalog over the goods catalogs.
func (c *City) VanillaPrice(r econ.Resource) (float64, bool) {
	v, ok := c.vanilla[r]
	return v, ok
}

// Rate implements host.TaxPolicy: the configured area rate plus a
// small district surcharge.
func (c *City) Rate(area host.TaxArea, district host.DistrictID) float64 {
	return c.rates[area] + 0.25*float64(district)
}

// Transfer implements host.Ledger against the target's wallet. The
// sandbox treats every resource as cash-equivalent.
func (c *City) Transfer(id host.EntityID, _ econ.Resource, amount int) bool {
	entity, ok := c.index[id]
	if !ok {
		return false
	}
	c.walletMap.Get(entity).Cash += float64(amount)
	return true
}

// ProfitPerDay implements host.ProfitModel: staffing times per-worker
// yield at the vanilla price, net of the modeled input share and the
// average wage bill.
func (c *City) ProfitPerDay(co host.Company) (float64, bool) {
	vanilla, ok := c.vanilla[co.Output]
	if !ok {
		return 0, false
	}
	yield := workerYieldPerTick * float64(c.cfg.Sandbox.UpdatesPerDay)
	revenue := float64(co.Employees) * yield * co.Efficiency * vanilla * (1 - inputCostShare)
	wages := float64(co.Employees) * c.avgWage
	return revenue - wages, true
}

// siteDirectory adapts site entities to host.WorkplaceDirectory.
type siteDirectory struct{ c *City }

func (d siteDirectory) Workplaces() []host.Workplace {
	out := make([]host.Workplace, 0, len(d.c.index))
	q := d.c.siteFilter.Query()
	for q.Next() {
		co, _, wp, _ := q.Get()
		out = append(out, host.Workplace{
			ID:         co.ID,
			Capacity:   wp.Capacity,
			Staffed:    wp.Staffed,
			MaxWorkers: wp.MaxWorkers,
		})
	}
	return out
}

func (d siteDirectory) SetMaxWorkers(id host.EntityID, max int) {
	entity, ok := d.c.index[id]
	if !ok {
		return
	}
	d.c.workplaceMap.Get(entity).MaxWorkers = max
}

// taxRoll adapts company entities to host.CompanyDirectory. Civic
// sites stay off the roll.
type taxRoll struct{ c *City }

func (d taxRoll) Companies() []host.Company {
	out := make([]host.Company, 0, len(d.c.index))
	q := d.c.siteFilter.Query()
	for q.Next() {
		co, _, wp, _ := q.Get()
		if co.Civic {
			continue
		}
		out = append(out, host.Company{
			ID:            co.ID,
			District:      co.District,
			Employees:     wp.Staffed,
			Efficiency:    co.Efficiency,
			Output:        co.Output,
			Rent:          co.Rent,
			UntaxedIncome: co.UntaxedIncome,
			AverageRate:   co.AverageRate,
		})
	}
	return out
}

func (d taxRoll) AddTaxableIncome(id host.EntityID, amount float64) {
	entity, ok := d.c.index[id]
	if !ok {
		return
	}
	co := d.c.companyMap.Get(entity)
	co.UntaxedIncome += amount
	if co.UntaxedIncome < 0 {
		co.UntaxedIncome = 0
	}
}

func (d taxRoll) SetAverageTaxRate(id host.EntityID, rate float64) {
	entity, ok := d.c.index[id]
	if !ok {
		return
	}
	d.c.companyMap.Get(entity).AverageRate = rate
}
