package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortCriteria selects the comparator used by View.
type SortCriteria string

const (
	SortByName SortCriteria = "name"
	SortByDate SortCriteria = "date"
	SortByDebt SortCriteria = "debt"
)

// Direction orders the comparator result.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

var (
	ErrInvalidSortCriteria = errors.New("sort criteria must be name, date or debt")
	ErrInvalidDirection    = errors.New("sort direction must be asc or desc")
)

// SortSpec pairs a criteria with a direction.
type SortSpec struct {
	Criteria  SortCriteria
	Direction Direction
}

// DefaultSort lists the newest orders first.
var DefaultSort = SortSpec{Criteria: SortByDate, Direction: Descending}

// ParseSortCriteria accepts the string form of a criteria. Empty means the default.
func ParseSortCriteria(raw string) (SortCriteria, error) {
	switch SortCriteria(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return DefaultSort.Criteria, nil
	case SortByName:
		return SortByName, nil
	case SortByDate:
		return SortByDate, nil
	case SortByDebt:
		return SortByDebt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortCriteria, raw)
	}
}

// ParseDirection accepts the string form of a direction. Empty means the
// criteria's default direction.
func ParseDirection(raw string, criteria SortCriteria) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return defaultDirection(criteria), nil
	case Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, raw)
	}
}

// NextSort applies a click on a sort control: the active criteria flips its
// direction, a different criteria starts from its default direction.
func NextSort(current SortSpec, criteria SortCriteria) SortSpec {
	if current.Criteria == criteria {
		return SortSpec{Criteria: criteria, Direction: current.Direction.Reverse()}
	}
	return SortSpec{Criteria: criteria, Direction: defaultDirection(criteria)}
}

// Reverse flips the direction.
func (d Direction) Reverse() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

func defaultDirection(criteria SortCriteria) Direction {
	if criteria == SortByName {
		return Ascending
	}
	return Descending
}

// Query is the search and sort state applied to an aggregate set.
type Query struct {
	Search string
	Sort   SortSpec
}

// View filters orders by a case-insensitive substring of the name and sorts
// the survivors with a stable sort, so ties keep their input order.
func View(orders []Order, q Query, c *Catalog) []Order {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if term == "" || strings.Contains(strings.ToLower(o.Name), term) {
			out = append(out, o)
		}
	}
	spec := q.Sort
	if spec.Criteria == "" {
		spec = DefaultSort
	}
	compare := comparator(spec.Criteria, c)
	sort.SliceStable(out, func(i, j int) bool {
		if spec.Direction == Descending {
			return compare(out[i], out[j]) > 0
		}
		return compare(out[i], out[j]) < 0
	})
	return out
}

func comparator(criteria SortCriteria, c *Catalog) func(a, b Order) int {
	switch criteria {
	case SortByName:
		col := collate.New(language.Spanish)
		return func(a, b Order) int { return col.CompareString(a.Name, b.Name) }
	case SortByDebt:
		return func(a, b Order) int { return a.Balance(c).Cmp(b.Balance(c)) }
	default:
		return func(a, b Order) int {
			ta, tb := createdMillis(a), createdMillis(b)
			switch {
			case ta < tb:
				return -1
			case ta > tb:
				return 1
			default:
				return 0
			}
		}
	}
}

// Missing timestamps sort as the epoch.
func createdMillis(o Order) int64 {
	if o.CreatedAt == nil {
		return 0
	}
	return o.CreatedAt.UnixMilli()
}

// Summary holds the global totals shown above the order list.
type Summary struct {
	TotalPaid decimal.Decimal
	TotalDebt decimal.Decimal
	Orders    int
}

// Summarize totals every order, independent of any active filter. Only
// positive balances count towards the debt.
func Summarize(orders []Order, c *Catalog) Summary {
	s := Summary{TotalPaid: decimal.Zero, TotalDebt: decimal.Zero, Orders: len(orders)}
	for _, o := range orders {
		s.TotalPaid = s.TotalPaid.Add(o.Paid)
		if balance := o.Balance(c); balance.IsPositive() {
			s.TotalDebt = s.TotalDebt.Add(balance)
		}
	}
	return s
}

// EmptyMessage is the placeholder shown when a view has no rows.
func EmptyMessage(search string) string {
	if term := strings.TrimSpace(search); term != "" {
		return fmt.Sprintf("No se encontraron clientes que coincidan con \"%s\".", term)
	}
	return "Aún no tienes pedidos. ¡Añade uno!"
}
