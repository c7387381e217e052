/*
tree.go - Checklist tree loading

PURPOSE:
  Loads a checklist's full hierarchy (areas, subareas, items,
  activities) into an in-memory view. Assessment creation, grading and
  the results endpoint all walk the same structure, so it is loaded
  once per operation instead of query-per-node.

KEY CONCEPTS:
  - TreeView: immutable snapshot of one checklist's hierarchy, with
    children grouped by parent id.
  - Ordering: children keep the store's sequence ordering so rendered
    output is stable across loads.
*/
package assessment

import "context"

// TreeView is a fully loaded checklist hierarchy.
type TreeView struct {
	Checklist  *Checklist
	Areas      []Area
	Subareas   map[AreaID][]Subarea
	Items      map[SubareaID][]Item
	Activities map[ItemID][]Activity
}

// LoadTree fetches the checklist and every descendant level.
func LoadTree(ctx context.Context, st ChecklistStore, id ChecklistID) (*TreeView, error) {
	cl, err := st.GetChecklist(ctx, id)
	if err != nil {
		return nil, err
	}
	areas, err := st.AreasByChecklist(ctx, id)
	if err != nil {
		return nil, err
	}

	tree := &TreeView{
		Checklist:  cl,
		Areas:      areas,
		Subareas:   make(map[AreaID][]Subarea),
		Items:      make(map[SubareaID][]Item),
		Activities: make(map[ItemID][]Activity),
	}
	for _, area := range areas {
		subareas, err := st.SubareasByArea(ctx, area.ID)
		if err != nil {
			return nil, err
		}
		tree.Subareas[area.ID] = subareas
		for _, sub := range subareas {
			items, err := st.ItemsBySubarea(ctx, sub.ID)
			if err != nil {
				return nil, err
			}
			tree.Items[sub.ID] = items
			for _, item := range items {
				activities, err := st.ActivitiesByItem(ctx, item.ID)
				if err != nil {
					return nil, err
				}
				tree.Activities[item.ID] = activities
			}
		}
	}
	return tree, nil
}

// AllSubareas returns every subarea in area order.
func (t *TreeView) AllSubareas() []Subarea {
	var out []Subarea
	for _, area := range t.Areas {
		out = append(out, t.Subareas[area.ID]...)
	}
	return out
}

// AllItems returns every item in tree order.
func (t *TreeView) AllItems() []Item {
	var out []Item
	for _, sub := range t.AllSubareas() {
		out = append(out, t.Items[sub.ID]...)
	}
	return out
}

// ItemCount returns the number of items across the whole tree.
func (t *TreeView) ItemCount() int {
	n := 0
	for _, items := range t.Items {
		n += len(items)
	}
	return n
}
