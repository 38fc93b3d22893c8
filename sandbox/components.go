package sandbox

import (
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

// Company identifies a site for the host views and the tax roll. Civic
// sites are city-run: they staff and produce but never pay rent or tax.
type Company struct {
	ID         host.EntityID
	District   host.DistrictID
	Output     econ.Resource
	Efficiency float64 // output scale, around 1
	Rent       float64 // per rent period
	Civic      bool

	// Written back by the regulation engine.
	UntaxedIncome float64
	AverageRate   float64 // percent
}

// Producer turns staffed labor into the company's output resource.
type Producer struct {
	BaseRate float64 // units per tick at full staffing
	Span     float64 // noise field coordinate, fixed at spawn
}

// Workplace is the staffable side of a site. Staffed never exceeds
// min(Capacity, MaxWorkers); layoffs restore the invariant when the
// cap drops.
type Workplace struct {
	Capacity   int
	Staffed    int
	MaxWorkers int
}

// Household supplies labor and consumes a basket of goods.
type Household struct {
	Members   int
	Education int // wage band its workers earn at, 0 through 4
	Employed  int
	Basket    [2]econ.Resource // discretionary goods on top of the staples
}

// Wallet holds an entity's cash balance. Debt is allowed; deeply
// indebted companies fold.
type Wallet struct {
	Cash float64
}
