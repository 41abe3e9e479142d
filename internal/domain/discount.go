package domain

import "sort"

type SubEventMode string

const (
	// SubEventModeMixed matches positions regardless of their subevent.
	SubEventModeMixed SubEventMode = "mixed"
	// SubEventModeSame only groups positions that share one subevent.
	SubEventModeSame SubEventMode = "same"
	// SubEventModeDistinct only counts sets of positions with pairwise
	// distinct subevents.
	SubEventModeDistinct SubEventMode = "distinct"
)

func (m SubEventMode) Valid() bool {
	switch m {
	case SubEventModeMixed, SubEventModeSame, SubEventModeDistinct:
		return true
	}
	return false
}

// Discount is an automatic price reduction rule evaluated over a set of
// order lines.
type Discount struct {
	ID           string
	EventID      string
	InternalName string
	Active       bool
	Position     int

	ConditionMinCount        int
	ConditionAllProducts     bool
	ConditionLimitProductIDs []string

	BenefitDiscountMatchingPercent Percent
	BenefitOnlyApplyToCheapestN    int

	SubEventMode SubEventMode
}

// discountGroup is a set of line indexes that satisfied the condition
// together, plus how many complete condition sets they form.
type discountGroup struct {
	indexes []int
	sets    int
}

// Evaluate applies the discount to the given lines and returns the resulting
// price per line, index-aligned with the input. Lines that do not match the
// condition set, or that fall short of the minimum count, keep their price.
//
// Without BenefitOnlyApplyToCheapestN the minimum count acts as a threshold
// and every matching line in a qualifying group is discounted. With it, each
// complete set of ConditionMinCount matches discounts only its cheapest N
// lines.
func (d Discount) Evaluate(lines []DiscountLine) []Money {
	result := make([]Money, len(lines))
	for i, l := range lines {
		result[i] = l.Price
	}
	if !d.Active || d.ConditionMinCount <= 0 {
		return result
	}

	for _, group := range d.groups(lines) {
		if group.sets == 0 {
			continue
		}
		benefit := len(group.indexes)
		if d.BenefitOnlyApplyToCheapestN > 0 {
			benefit = group.sets * d.BenefitOnlyApplyToCheapestN
			if benefit > len(group.indexes) {
				benefit = len(group.indexes)
			}
		}
		idx := append([]int(nil), group.indexes...)
		// Cheapest lines first.
		sort.SliceStable(idx, func(a, b int) bool {
			return lines[idx[a]].Price < lines[idx[b]].Price
		})
		for _, i := range idx[:benefit] {
			result[i] = d.BenefitDiscountMatchingPercent.ApplyTo(lines[i].Price)
		}
	}
	return result
}

// DiscountLine is one order line fed into discount evaluation.
type DiscountLine struct {
	ItemID     string
	SubEventID string
	Price      Money
}

func (d Discount) matchingIndexes(lines []DiscountLine) []int {
	limit := make(map[string]struct{}, len(d.ConditionLimitProductIDs))
	for _, id := range d.ConditionLimitProductIDs {
		limit[id] = struct{}{}
	}
	var out []int
	for i, l := range lines {
		if !d.ConditionAllProducts {
			if _, ok := limit[l.ItemID]; !ok {
				continue
			}
		}
		out = append(out, i)
	}
	return out
}

func (d Discount) groups(lines []DiscountLine) []discountGroup {
	matching := d.matchingIndexes(lines)
	if len(matching) == 0 {
		return nil
	}

	switch d.SubEventMode {
	case SubEventModeSame:
		bySub := make(map[string][]int)
		for _, i := range matching {
			bySub[lines[i].SubEventID] = append(bySub[lines[i].SubEventID], i)
		}
		keys := make([]string, 0, len(bySub))
		for k := range bySub {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]discountGroup, 0, len(keys))
		for _, k := range keys {
			out = append(out, discountGroup{
				indexes: bySub[k],
				sets:    len(bySub[k]) / d.ConditionMinCount,
			})
		}
		return out
	case SubEventModeDistinct:
		return d.distinctSets(lines, matching)
	default:
		return []discountGroup{{
			indexes: matching,
			sets:    len(matching) / d.ConditionMinCount,
		}}
	}
}

// distinctSets greedily forms sets of ConditionMinCount lines with pairwise
// distinct subevents, always drawing from the fullest buckets so the number
// of complete sets is maximized.
func (d Discount) distinctSets(lines []DiscountLine, matching []int) []discountGroup {
	bySub := make(map[string][]int)
	for _, i := range matching {
		bySub[lines[i].SubEventID] = append(bySub[lines[i].SubEventID], i)
	}

	var group discountGroup
	for {
		keys := make([]string, 0, len(bySub))
		for k := range bySub {
			keys = append(keys, k)
		}
		if len(keys) < d.ConditionMinCount {
			break
		}
		sort.Slice(keys, func(a, b int) bool {
			if len(bySub[keys[a]]) != len(bySub[keys[b]]) {
				return len(bySub[keys[a]]) > len(bySub[keys[b]])
			}
			return keys[a] < keys[b]
		})
		for _, k := range keys[:d.ConditionMinCount] {
			group.indexes = append(group.indexes, bySub[k][0])
			if len(bySub[k]) == 1 {
				delete(bySub, k)
			} else {
				bySub[k] = bySub[k][1:]
			}
		}
		group.sets++
	}
	if group.sets == 0 {
		return nil
	}
	return []discountGroup{group}
}
