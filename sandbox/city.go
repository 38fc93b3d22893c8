// Package sandbox provides a small self-contained city: an ark ECS
// world of companies, workplaces and households that hires, produces,
// consumes and pays wages every tick. The city implements every host
// interface, so the regulation engine can run against it unmodified.
// All randomness flows from one seeded source; two cities built from
// the same config replay identically.
package sandbox

import (
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

// Money and labor scale. Tuned so a default run keeps unemployment in
// the high single digits and a handful of companies near break-even.
const (
	workerYieldPerTick = 0.18  // output units per staffed worker per tick
	inputCostShare     = 0.4   // modeled share of revenue spent on inputs
	startingCash       = 25000 // new company treasury
	foldDebt           = 40000 // debt at which a company folds
	initialHireShare   = 0.92  // share of the workforce employed at spawn
	tradeShare         = 0.15  // share of the net imbalance traded outside
)

// Noise field shape. Swings are the half-width of the factor band
// around 1.
const (
	noiseTimeScale = 0.02
	supplySwing    = 0.4
	demandSwing    = 0.3
)

// ingredient is one input a good consumes per unit of output.
type ingredient struct {
	resource econ.Resource
	perUnit  float64
}

// good couples a producible resource with its vanilla price and inputs.
// A zero ingredient slot means no input.
type good struct {
	resource econ.Resource
	vanilla  float64
	inputs   [2]ingredient
}

// goodsCatalog is what taxpaying companies produce. Prices rise with
// processing depth so the three tax areas land on distinct scales, and
// the input chains keep industrial demand alive without households.
var goodsCatalog = []good{
	{resource: econ.ResourceGrain, vanilla: 450},
	{resource: econ.ResourceProduce, vanilla: 520},
	{resource: econ.ResourceLivestock, vanilla: 700, inputs: [2]ingredient{{econ.ResourceGrain, 0.5}}},
	{resource: econ.ResourceFish, vanilla: 620},
	{resource: econ.ResourceWood, vanilla: 380},
	{resource: econ.ResourceOre, vanilla: 520},
	{resource: econ.ResourceCoal, vanilla: 480},
	{resource: econ.ResourceTimber, vanilla: 540, inputs: [2]ingredient{{econ.ResourceWood, 0.8}}},
	{resource: econ.ResourceFood, vanilla: 850, inputs: [2]ingredient{{econ.ResourceGrain, 0.6}, {econ.ResourceProduce, 0.2}}},
	{resource: econ.ResourceSteel, vanilla: 1150, inputs: [2]ingredient{{econ.ResourceOre, 0.7}, {econ.ResourceCoal, 0.4}}},
	{resource: econ.ResourceFuel, vanilla: 980, inputs: [2]ingredient{{econ.ResourceCoal, 0.5}}},
	{resource: econ.ResourceFurniture, vanilla: 1400, inputs: [2]ingredient{{econ.ResourceTimber, 0.6}}},
	{resource: econ.ResourceElectronics, vanilla: 2600, inputs: [2]ingredient{{econ.ResourceSteel, 0.3}}},
	{resource: econ.ResourceTextiles, vanilla: 900},
	{resource: econ.ResourceMachinery, vanilla: 3200, inputs: [2]ingredient{{econ.ResourceSteel, 0.5}}},
	{resource: econ.ResourceMeals, vanilla: 650, inputs: [2]ingredient{{econ.ResourceFood, 0.7}}},
	{resource: econ.ResourceLodging, vanilla: 1200, inputs: [2]ingredient{{econ.ResourceElectricity, 0.3}}},
	{resource: econ.ResourceHealthcare, vanilla: 2100, inputs: [2]ingredient{{econ.ResourceElectricity, 0.2}}},
	{resource: econ.ResourceEntertainment, vanilla: 750, inputs: [2]ingredient{{econ.ResourceElectricity, 0.2}}},
	{resource: econ.ResourceSoftware, vanilla: 2800, inputs: [2]ingredient{{econ.ResourceElectricity, 0.15}}},
	{resource: econ.ResourceFinance, vanilla: 3500, inputs: [2]ingredient{{econ.ResourceSoftware, 0.1}}},
	{resource: econ.ResourceMedia, vanilla: 1600, inputs: [2]ingredient{{econ.ResourceElectricity, 0.2}}},
}

// civicCatalog is what city-run sites produce.
var civicCatalog = []good{
	{resource: econ.ResourceElectricity, vanilla: 300, inputs: [2]ingredient{{econ.ResourceCoal, 0.6}}},
	{resource: econ.ResourceWater, vanilla: 180, inputs: [2]ingredient{{econ.ResourceElectricity, 0.1}}},
	{resource: econ.ResourceSanitation, vanilla: 240, inputs: [2]ingredient{{econ.ResourceWater, 0.2}}},
}

// staples every household buys each tick, appetite in units per member.
var staples = []struct {
	resource econ.Resource
	appetite float64
}{
	{econ.ResourceFood, 0.0050},
	{econ.ResourceElectricity, 0.0045},
	{econ.ResourceWater, 0.0040},
}

// discretionary goods households pick two of at spawn.
var discretionary = []econ.Resource{
	econ.ResourceMeals,
	econ.ResourceTextiles,
	econ.ResourceEntertainment,
	econ.ResourceHealthcare,
	econ.ResourceFurniture,
	econ.ResourceElectronics,
	econ.ResourceMedia,
	econ.ResourceFuel,
	econ.ResourceLodging,
}

const discretionaryAppetite = 0.008

// Pricer resolves market-adjusted sale prices. The regulation engine
// satisfies this; without one the city trades at vanilla prices.
type Pricer interface {
	ElasticPrice(r econ.Resource, vanilla float64) float64
}

// City holds the synthetic city state.
type City struct {
	cfg  *config.Config
	rng  *rand.Rand
	tick int64

	world *ecs.World

	siteMapper *ecs.Map4[Company, Producer, Workplace, Wallet]
	siteFilter *ecs.Filter4[Company, Producer, Workplace, Wallet]
	hhMapper   *ecs.Map2[Household, Wallet]
	hhFilter   *ecs.Filter2[Household, Wallet]

	// Individual component mappers for by-ID writes.
	companyMap   *ecs.Map1[Company]
	workplaceMap *ecs.Map1[Workplace]
	walletMap    *ecs.Map1[Wallet]

	index  map[host.EntityID]ecs.Entity
	nextID host.EntityID

	supplyNoise opensimplex.Noise
	demandNoise opensimplex.Noise
	laborNoise  opensimplex.Noise

	vanilla map[econ.Resource]float64
	recipes map[econ.Resource][2]ingredient
	rates   map[host.TaxArea]float64
	bands   [host.WageLevels]int

	// Per-tick aggregates, rebuilt by Step.
	produced map[econ.Resource]float64
	consumed map[econ.Resource]float64
	mood     map[econ.Resource]float64

	stats      host.LaborStats
	censusDone bool
	avgWage    float64

	pricer Pricer
	folded int
}

// NewCity builds and populates a city from cfg.Sandbox. The first
// census runs before return, so labor stats are available from tick
// one.
func NewCity(cfg *config.Config) *City {
	world := ecs.NewWorld()
	sb := cfg.Sandbox

	c := &City{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(sb.Seed)),
		world:      world,
		siteMapper: ecs.NewMap4[Company, Producer, Workplace, Wallet](world),
		siteFilter: ecs.NewFilter4[Company, Producer, Workplace, Wallet](world),
		hhMapper:   ecs.NewMap2[Household, Wallet](world),
		hhFilter:   ecs.NewFilter2[Household, Wallet](world),

		companyMap:   ecs.NewMap1[Company](world),
		workplaceMap: ecs.NewMap1[Workplace](world),
		walletMap:    ecs.NewMap1[Wallet](world),

		index:  make(map[host.EntityID]ecs.Entity),
		nextID: 1,

		supplyNoise: opensimplex.NewNormalized(sb.Seed),
		demandNoise: opensimplex.NewNormalized(sb.Seed + 1),
		laborNoise:  opensimplex.NewNormalized(sb.Seed + 2),

		vanilla:  make(map[econ.Resource]float64),
		recipes:  make(map[econ.Resource][2]ingredient),
		produced: make(map[econ.Resource]float64),
		consumed: make(map[econ.Resource]float64),
		mood:     make(map[econ.Resource]float64),

		bands: [host.WageLevels]int{1200, 1500, 1900, 2400, 3000},
	}

	for _, g := range goodsCatalog {
		c.vanilla[g.resource] = g.vanilla
		c.recipes[g.resource] = g.inputs
	}
	for _, g := range civicCatalog {
		c.vanilla[g.resource] = g.vanilla
		c.recipes[g.resource] = g.inputs
	}
	c.rates = map[host.TaxArea]float64{
		host.TaxAreaIndustrial: sb.IndustrialRate,
		host.TaxAreaCommercial: sb.CommercialRate,
		host.TaxAreaOffice:     sb.OfficeRate,
	}

	c.spawnSites()
	c.spawnHouseholds()
	c.seedEmployment()
	c.takeCensus()
	return c
}

// UsePrices routes the city's internal purchases and sales through p.
func (c *City) UsePrices(p Pricer) {
	c.pricer = p
}

// spawnSites creates the taxpaying companies round-robin over the
// goods catalog, then the civic remainder over the civic catalog.
func (c *City) spawnSites() {
	sb := c.cfg.Sandbox
	for i := 0; i < sb.Companies; i++ {
		c.spawnCompany(goodsCatalog[i%len(goodsCatalog)], false)
	}
	civic := sb.Workplaces - sb.Companies
	for i := 0; i < civic; i++ {
		c.spawnCompany(civicCatalog[i%len(civicCatalog)], true)
	}
}

// spawnCompany creates one site entity producing g.
func (c *City) spawnCompany(g good, civic bool) ecs.Entity {
	id := c.nextID
	c.nextID++

	capacity := 24 + c.rng.Intn(24)
	co := Company{
		ID:         id,
		District:   host.DistrictID(c.rng.Intn(4)),
		Output:     g.resource,
		Efficiency: 0.8 + 0.4*c.rng.Float64(),
		Civic:      civic,
	}
	if !civic {
		co.Rent = float64(capacity * (45 + c.rng.Intn(30)))
	}
	p := Producer{
		BaseRate: float64(capacity) * workerYieldPerTick * (0.85 + 0.3*c.rng.Float64()),
		Span:     c.rng.Float64() * 64,
	}
	wp := Workplace{Capacity: capacity, MaxWorkers: capacity}
	w := Wallet{Cash: startingCash}

	entity := c.siteMapper.NewEntity(&co, &p, &wp, &w)
	c.index[id] = entity
	return entity
}

// spawnHouseholds creates the labor and consumption side.
func (c *City) spawnHouseholds() {
	for i := 0; i < c.cfg.Sandbox.Households; i++ {
		h := Household{
			Members:   1 + c.rng.Intn(3),
			Education: c.pickEducation(),
			Basket:    c.pickBasket(),
		}
		w := Wallet{Cash: 4000 + c.rng.Float64()*8000}
		c.hhMapper.NewEntity(&h, &w)
	}
}

// pickEducation draws a wage band with a bottom-heavy distribution.
func (c *City) pickEducation() int {
	roll := c.rng.Float64()
	switch {
	case roll < 0.30:
		return 0
	case roll < 0.55:
		return 1
	case roll < 0.75:
		return 2
	case roll < 0.90:
		return 3
	default:
		return 4
	}
}

// pickBasket draws two distinct discretionary goods.
func (c *City) pickBasket() [2]econ.Resource {
	first := c.rng.Intn(len(discretionary))
	second := c.rng.Intn(len(discretionary) - 1)
	if second >= first {
		second++
	}
	return [2]econ.Resource{discretionary[first], discretionary[second]}
}

// seedEmployment staffs sites up to a target share of the workforce so
// the first census lands at a believable unemployment figure.
func (c *City) seedEmployment() {
	workforce := 0
	q := c.hhFilter.Query()
	for q.Next() {
		h, _ := q.Get()
		workforce += h.Members
	}

	budget := int(initialHireShare * float64(workforce))
	hired := 0
	qs := c.siteFilter.Query()
	for qs.Next() {
		_, _, wp, _ := qs.Get()
		hire := wp.Capacity
		if hire > budget {
			hire = budget
		}
		wp.Staffed = hire
		budget -= hire
		hired += hire
	}
	c.assignWorkers(hired)
}

// Step advances the city one tick: labor churn, production, household
// consumption, wage payouts, rent and bankruptcies, then a fresh
// census. The regulation engine reads the resulting aggregates when
// its own step runs afterwards.
func (c *City) Step() {
	c.tick++
	c.beginPeriod()
	c.churnLabor()
	c.produce()
	c.consume()
	c.payWages()
	c.chargeRent()
	c.foldBroke()
	c.takeCensus()
}

// beginPeriod clears the period aggregates and rolls the tick's demand
// mood per resource.
func (c *City) beginPeriod() {
	c.produced = make(map[econ.Resource]float64)
	c.consumed = make(map[econ.Resource]float64)

	t := float64(c.tick) * noiseTimeScale
	for i, g := range goodsCatalog {
		c.mood[g.resource] = 1 + demandSwing*(2*octaveNoise(c.demandNoise, float64(i)*1.7, t, 3, 0.5, 0.5)-1)
	}
	for i, g := range civicCatalog {
		c.mood[g.resource] = 1 + demandSwing*(2*octaveNoise(c.demandNoise, 64+float64(i)*1.7, t, 3, 0.5, 0.5)-1)
	}
}

// churnLabor applies staffing caps, voluntary quits and a hiring round
// while keeping the staffed and employed totals equal.
func (c *City) churnLabor() {
	t := float64(c.tick) * noiseTimeScale
	climate := octaveNoise(c.laborNoise, 7.7, t, 3, 0.5, 0.5)

	// Sites over their cap release the difference. MaxWorkers is where
	// the utilization enforcer bites back.
	released := 0
	qs := c.siteFilter.Query()
	for qs.Next() {
		_, _, wp, _ := qs.Get()
		limit := siteLimit(wp)
		if wp.Staffed > limit {
			released += wp.Staffed - limit
			wp.Staffed = limit
		}
	}
	c.releaseWorkers(released)

	// Voluntary quits, more of them in a restless climate.
	quits := 0
	qh := c.hhFilter.Query()
	for qh.Next() {
		h, _ := qh.Get()
		if h.Employed > 0 && c.rng.Float64() < float64(h.Employed)*(0.001+0.004*climate) {
			h.Employed--
			quits++
		}
	}
	c.unstaff(quits)

	// Hiring fills a climate-scaled share of the matchable pairs.
	openings, seekers := c.laborGap()
	pool := openings
	if seekers < pool {
		pool = seekers
	}
	hires := int(float64(pool) * (0.05 + 0.25*climate))
	if hires <= 0 {
		return
	}
	staffed := c.staffUp(hires)
	c.assignWorkers(staffed)
}

// siteLimit is the effective staffing cap of a workplace.
func siteLimit(wp *Workplace) int {
	limit := wp.Capacity
	if wp.MaxWorkers < limit {
		limit = wp.MaxWorkers
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}

// laborGap counts open positions and idle workers.
func (c *City) laborGap() (openings, seekers int) {
	qs := c.siteFilter.Query()
	for qs.Next() {
		_, _, wp, _ := qs.Get()
		openings += siteLimit(wp) - wp.Staffed
	}
	qh := c.hhFilter.Query()
	for qh.Next() {
		h, _ := qh.Get()
		seekers += h.Members - h.Employed
	}
	return openings, seekers
}

// staffUp adds up to n workers across sites in iteration order and
// returns how many were placed.
func (c *City) staffUp(n int) int {
	placed := 0
	q := c.siteFilter.Query()
	for q.Next() {
		_, _, wp, _ := q.Get()
		if n <= 0 {
			continue
		}
		free := siteLimit(wp) - wp.Staffed
		if free <= 0 {
			continue
		}
		if free > n {
			free = n
		}
		wp.Staffed += free
		placed += free
		n -= free
	}
	return placed
}

// unstaff removes n workers across sites in iteration order.
func (c *City) unstaff(n int) {
	q := c.siteFilter.Query()
	for q.Next() {
		_, _, wp, _ := q.Get()
		if n <= 0 {
			continue
		}
		cut := wp.Staffed
		if cut > n {
			cut = n
		}
		wp.Staffed -= cut
		n -= cut
	}
}

// assignWorkers marks n workers employed across households.
func (c *City) assignWorkers(n int) {
	q := c.hhFilter.Query()
	for q.Next() {
		h, _ := q.Get()
		if n <= 0 {
			continue
		}
		free := h.Members - h.Employed
		if free <= 0 {
			continue
		}
		if free > n {
			free = n
		}
		h.Employed += free
		n -= free
	}
}

// releaseWorkers marks n workers unemployed across households.
func (c *City) releaseWorkers(n int) {
	q := c.hhFilter.Query()
	for q.Next() {
		h, _ := q.Get()
		if n <= 0 {
			continue
		}
		cut := h.Employed
		if cut > n {
			cut = n
		}
		h.Employed -= cut
		n -= cut
	}
}

// produce runs every site: output scales with staffing, efficiency and
// a drifting supply field. Revenue lands in the wallet net of input
// purchases at current market prices.
func (c *City) produce() {
	t := float64(c.tick) * noiseTimeScale
	q := c.siteFilter.Query()
	for q.Next() {
		co, p, wp, w := q.Get()
		if wp.Capacity <= 0 || wp.Staffed <= 0 {
			continue
		}
		share := float64(wp.Staffed) / float64(wp.Capacity)
		swing := 1 + supplySwing*(2*octaveNoise(c.supplyNoise, p.Span, t, 3, 0.5, 0.5)-1)
		out := p.BaseRate * share * co.Efficiency * swing
		if out <= 0 {
			continue
		}
		c.produced[co.Output] += out
		w.Cash += out * c.price(co.Output)
		for _, in := range c.recipes[co.Output] {
			if in.resource == econ.ResourceNone {
				continue
			}
			need := out * in.perUnit
			c.consumed[in.resource] += need
			w.Cash -= need * c.price(in.resource)
		}
	}
}

// consume has every household buy its staples and basket. Purchases
// shrink as prices rise above vanilla, which is the feedback loop the
// price regulator works against.
func (c *City) consume() {
	q := c.hhFilter.Query()
	for q.Next() {
		h, w := q.Get()
		for _, s := range staples {
			c.buy(h, w, s.resource, s.appetite)
		}
		for _, r := range h.Basket {
			c.buy(h, w, r, discretionaryAppetite)
		}
	}
}

// buy registers demand for one good and pays for it.
func (c *City) buy(h *Household, w *Wallet, r econ.Resource, appetite float64) {
	price := c.price(r)
	vanilla := c.vanilla[r]
	want := float64(h.Members) * appetite * c.mood[r]
	if price > 0 && vanilla > 0 {
		want *= econ.Clamp(vanilla/price, 0.5, 1.5)
	}
	if want <= 0 {
		return
	}
	c.consumed[r] += want
	w.Cash -= want * price
}

// payWages moves the per-tick wage bill from sites to households at
// the current band rates.
func (c *City) payWages() {
	perDay := float64(c.cfg.Sandbox.UpdatesPerDay)

	qh := c.hhFilter.Query()
	for qh.Next() {
		h, w := qh.Get()
		if h.Employed > 0 {
			w.Cash += float64(h.Employed) * float64(c.bands[h.Education]) / perDay
		}
	}

	qs := c.siteFilter.Query()
	for qs.Next() {
		_, _, wp, w := qs.Get()
		if wp.Staffed > 0 {
			w.Cash -= float64(wp.Staffed) * c.avgWage / perDay
		}
	}
}

// chargeRent bills company rent once per rent period.
func (c *City) chargeRent() {
	per := c.cfg.Sandbox.UpdatesPerDay / c.cfg.Sandbox.RentUpdatesPerDay
	if per < 1 {
		per = 1
	}
	if c.tick%int64(per) != 0 {
		return
	}
	q := c.siteFilter.Query()
	for q.Next() {
		co, _, _, w := q.Get()
		if !co.Civic && co.Rent > 0 {
			w.Cash -= co.Rent
		}
	}
}

// foldBroke removes companies that sank too deep into debt and spawns
// replacements so the site count holds. Civic sites never fold.
func (c *City) foldBroke() {
	type fold struct {
		entity  ecs.Entity
		id      host.EntityID
		staffed int
	}
	var folds []fold

	query := c.siteFilter.Query()
	for query.Next() {
		co, _, wp, w := query.Get()
		if co.Civic || w.Cash > -foldDebt {
			continue
		}
		folds = append(folds, fold{entity: query.Entity(), id: co.ID, staffed: wp.Staffed})
	}

	for _, f := range folds {
		c.siteMapper.Remove(f.entity)
		delete(c.index, f.id)
		c.releaseWorkers(f.staffed)
		c.folded++
		c.spawnCompany(goodsCatalog[c.rng.Intn(len(goodsCatalog))], false)
	}
}

// takeCensus rebuilds the labor snapshot and the average wage.
func (c *City) takeCensus() {
	var stats host.LaborStats
	q := c.hhFilter.Query()
	for q.Next() {
		h, _ := q.Get()
		stats.Workforce += h.Members
		stats.Employed += h.Employed
		stats.Education[h.Education] += h.Members
	}
	c.stats = stats
	c.censusDone = true

	weighted := 0.0
	for i, n := range stats.Education {
		weighted += float64(c.bands[i]) * float64(n)
	}
	if stats.Workforce > 0 {
		c.avgWage = weighted / float64(stats.Workforce)
	}
}

// price resolves the current sale price for r, asking the attached
// pricer when one is present.
func (c *City) price(r econ.Resource) float64 {
	vanilla := c.vanilla[r]
	if c.pricer != nil {
		return c.pricer.ElasticPrice(r, vanilla)
	}
	return vanilla
}

// octaveNoise layers normalized noise octaves along a time axis.
func octaveNoise(noise opensimplex.Noise, x, t float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, t*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Tick returns the city clock.
func (c *City) Tick() int64 {
	return c.tick
}

// Unemployment returns the latest census unemployment share.
func (c *City) Unemployment() float64 {
	if c.stats.Workforce == 0 {
		return 0
	}
	return 1 - float64(c.stats.Employed)/float64(c.stats.Workforce)
}

// Folded reports how many companies went under since start.
func (c *City) Folded() int {
	return c.folded
}

// Sites reports how many staffable sites exist.
func (c *City) Sites() int {
	n := 0
	q := c.siteFilter.Query()
	for q.Next() {
		n++
	}
	return n
}

// PeriodFlow returns this tick's produced and consumed units for r.
func (c *City) PeriodFlow(r econ.Resource) (produced, consumed float64) {
	return c.produced[r], c.consumed[r]
}

// TreasuryBalance sums every wallet in the city. Useful as a cheap
// determinism fingerprint.
func (c *City) TreasuryBalance() float64 {
	total := 0.0
	qs := c.siteFilter.Query()
	for qs.Next() {
		_, _, _, w := qs.Get()
		total += w.Cash
	}
	qh := c.hhFilter.Query()
	for qh.Next() {
		_, w := qh.Get()
		total += w.Cash
	}
	return total
}
