// Package registry implements the advisor group registry: declarative
// group configuration, product-selector expansion, and advisor-spec
// materialization via pluggable factories.
package registry

import (
	"fmt"
	"strings"

	"github.com/LaoKpa/tai/internal/advisor"
	"github.com/LaoKpa/tai/pkg/types"
)

// GroupConfig is the raw, pre-validated shape of one configured group.
// Advisor and Factory are Go-native implementation references rather than
// config-file strings — a config loader resolves a type name to one of
// these via its own registry before calling ParseConfig.
type GroupConfig struct {
	Advisor  advisor.Advisor
	Factory  Factory
	Products string
	Config   map[string]any
}

// AdvisorGroup is a validated group ready for BuildSpecs.
type AdvisorGroup struct {
	ID       string
	Advisor  advisor.Advisor
	Factory  Factory
	Products string
	Config   map[string]any
}

// AdvisorSpec materializes one advisor to start. OrderBooks maps venue ->
// symbols the advisor should subscribe to.
type AdvisorSpec struct {
	Module     advisor.Advisor
	GroupID    string
	AdvisorID  string
	Products   []types.Product
	OrderBooks map[string][]string
	Config     map[string]any
	Trades     any
}

// Address is the AdvisorSpec's addressable name, matching Runtime.Address.
func (s AdvisorSpec) Address() string {
	return fmt.Sprintf("advisor_%s_%s", s.GroupID, s.AdvisorID)
}

// Factory materializes a group's matched product list into AdvisorSpecs.
// How many advisors to mint per group, and what OrderBooks mapping each
// receives, is entirely up to the Factory.
type Factory interface {
	BuildSpecs(group AdvisorGroup, products []types.Product) []AdvisorSpec
}

// OnePerProduct is a reference Factory minting one AdvisorSpec per matched
// product, the common case.
type OnePerProduct struct{}

func (OnePerProduct) BuildSpecs(group AdvisorGroup, products []types.Product) []AdvisorSpec {
	specs := make([]AdvisorSpec, 0, len(products))
	for i, p := range products {
		specs = append(specs, AdvisorSpec{
			Module:     group.Advisor,
			GroupID:    group.ID,
			AdvisorID:  fmt.Sprintf("%d_%s_%s", i, p.VenueID, p.Symbol),
			Products:   []types.Product{p},
			OrderBooks: map[string][]string{p.VenueID: {p.Symbol}},
			Config:     group.Config,
		})
	}
	return specs
}

// FieldError is one missing-field complaint from ParseConfig.
type FieldError struct {
	Field   string
	Message string
}

// ParseConfig validates each group's presence of advisor/factory/products.
// config defaults to an empty mapping when absent. If any group has
// errors, ParseConfig returns them all, grouped by group_id, and a nil
// group list: either every group resolves, or none do.
func ParseConfig(raw map[string]GroupConfig) ([]AdvisorGroup, map[string][]FieldError) {
	groups := make([]AdvisorGroup, 0, len(raw))
	errs := make(map[string][]FieldError)

	for id, g := range raw {
		var groupErrs []FieldError
		if g.Advisor == nil {
			groupErrs = append(groupErrs, FieldError{Field: "advisor", Message: "must be present"})
		}
		if g.Factory == nil {
			groupErrs = append(groupErrs, FieldError{Field: "factory", Message: "must be present"})
		}
		if g.Products == "" {
			groupErrs = append(groupErrs, FieldError{Field: "products", Message: "must be present"})
		}
		if len(groupErrs) > 0 {
			errs[id] = groupErrs
			continue
		}

		config := g.Config
		if config == nil {
			config = map[string]any{}
		}
		groups = append(groups, AdvisorGroup{
			ID:       id,
			Advisor:  g.Advisor,
			Factory:  g.Factory,
			Products: g.Products,
			Config:   config,
		})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return groups, nil
}

// Selector is a parsed product-selector expression: space-separated
// tokens, each "*", "<venue>", or "<venue>.<symbol>", unioned; an empty
// selector matches nothing.
type Selector struct {
	tokens []string
}

// ParseSelector parses a selector expression.
func ParseSelector(expr string) Selector {
	return Selector{tokens: strings.Fields(expr)}
}

// Filter returns the subset of universe matched by the selector, in the
// order of first match across tokens, deduplicated.
func (s Selector) Filter(universe []types.Product) []types.Product {
	if len(s.tokens) == 0 {
		return nil
	}

	seen := make(map[types.Product]bool)
	var out []types.Product
	for _, tok := range s.tokens {
		for _, p := range universe {
			if seen[p] || !tokenMatches(tok, p) {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func tokenMatches(token string, p types.Product) bool {
	if token == "*" {
		return true
	}
	if venue, symbol, ok := strings.Cut(token, "."); ok {
		return p.VenueID == venue && p.Symbol == symbol
	}
	return p.VenueID == token
}

// BuildSpecs resolves every group's selector against universe and
// delegates to its factory, concatenating the results.
func BuildSpecs(groups []AdvisorGroup, universe []types.Product) []AdvisorSpec {
	var specs []AdvisorSpec
	for _, g := range groups {
		filtered := ParseSelector(g.Products).Filter(universe)
		specs = append(specs, g.Factory.BuildSpecs(g, filtered)...)
	}
	return specs
}

// BuildSpecsForGroup narrows BuildSpecs to a single group_id.
func BuildSpecsForGroup(groups []AdvisorGroup, universe []types.Product, groupID string) []AdvisorSpec {
	for _, g := range groups {
		if g.ID != groupID {
			continue
		}
		filtered := ParseSelector(g.Products).Filter(universe)
		return g.Factory.BuildSpecs(g, filtered)
	}
	return nil
}

// BuildSpecsForAdvisor narrows BuildSpecsForGroup to a single advisor_id.
func BuildSpecsForAdvisor(groups []AdvisorGroup, universe []types.Product, groupID, advisorID string) *AdvisorSpec {
	for _, spec := range BuildSpecsForGroup(groups, universe, groupID) {
		if spec.AdvisorID == advisorID {
			return &spec
		}
	}
	return nil
}
