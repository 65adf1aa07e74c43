package dedup

import (
	"fmt"
	"strings"

	"github.com/dpolishuk/codesense/internal/models"
)

// Criterion ranks instances of the same entity when choosing which one the
// merged entity is based on.
type Criterion string

const (
	ByMethods     Criterion = "methods"
	ByProps       Criterion = "props"
	BySource      Criterion = "source"
	ByDescription Criterion = "description"
)

// Policy decides which instance of a duplicated entity is the richer one.
// Criteria are compared in order; the first instance wins a full tie.
type Policy struct {
	Criteria []Criterion
}

func DefaultPolicy() Policy {
	return Policy{Criteria: []Criterion{ByMethods, ByProps, BySource, ByDescription}}
}

// ParsePolicy builds a Policy from criterion names such as "props,methods".
func ParsePolicy(names []string) (Policy, error) {
	var p Policy
	for _, n := range names {
		c := Criterion(strings.ToLower(strings.TrimSpace(n)))
		switch c {
		case ByMethods, ByProps, BySource, ByDescription:
			p.Criteria = append(p.Criteria, c)
		case "":
		default:
			return Policy{}, fmt.Errorf("unknown merge criterion %q", n)
		}
	}
	if len(p.Criteria) == 0 {
		return DefaultPolicy(), nil
	}
	return p, nil
}

func (p Policy) weight(c Criterion, e *models.Entity) int {
	switch c {
	case ByMethods:
		return len(e.Methods)
	case ByProps:
		return len(e.Props)
	case BySource:
		return len(e.SourceCode)
	case ByDescription:
		return len(e.Description)
	}
	return 0
}

// richer reports whether a ranks strictly above b.
func (p Policy) richer(a, b *models.Entity) bool {
	for _, c := range p.Criteria {
		wa, wb := p.weight(c, a), p.weight(c, b)
		if wa != wb {
			return wa > wb
		}
	}
	return false
}
