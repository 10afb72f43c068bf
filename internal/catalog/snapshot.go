package catalog

// Snapshot is an indexed read of the catalog taken at one point in time.
type Snapshot struct {
	types  []JewelryType
	models map[string]JewelryModel
	charms map[string]Charm
	order  []string
}

// NewSnapshot indexes the given reads. Duplicate ids keep the first occurrence.
func NewSnapshot(types []JewelryType, charms []Charm) *Snapshot {
	s := &Snapshot{
		types:  types,
		models: make(map[string]JewelryModel),
		charms: make(map[string]Charm, len(charms)),
		order:  make([]string, 0, len(charms)),
	}
	for _, t := range types {
		for _, m := range t.Models {
			if _, ok := s.models[m.ID]; !ok {
				s.models[m.ID] = m
			}
		}
	}
	for _, c := range charms {
		if _, ok := s.charms[c.ID]; ok {
			continue
		}
		s.charms[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	return s
}

func (s *Snapshot) Types() []JewelryType { return s.types }

func (s *Snapshot) Model(id string) (JewelryModel, bool) {
	m, ok := s.models[id]
	return m, ok
}

// Type returns the jewelry type by id, with its models.
func (s *Snapshot) Type(id TypeID) (JewelryType, bool) {
	for _, t := range s.types {
		if t.ID == id {
			return t, true
		}
	}
	return JewelryType{}, false
}

func (s *Snapshot) Charm(id string) (Charm, bool) {
	c, ok := s.charms[id]
	return c, ok
}

// Stock returns the live stock of a charm, zero when the charm is unknown.
func (s *Snapshot) Stock(id string) int {
	return s.charms[id].Stock
}

// Charms returns the charms in read order.
func (s *Snapshot) Charms() []Charm {
	out := make([]Charm, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.charms[id])
	}
	return out
}
