package availability

import "slices"

// Filter оставляет сессии, у которых min_age_limit совпадает с порогом категории,
// и выкидывает центры без подходящих сессий.
// Для Unknown и Any возвращает вход как есть: результат нельзя менять.
func Filter(s Snapshot, band AgeBand) Snapshot {
	age, ok := band.MinAge()
	if !ok {
		return s
	}
	return s.retain(func(ss Session) bool { return ss.MinAgeLimit == age })
}

// Available оставляет только сессии со свободными местами.
func (s Snapshot) Available() Snapshot {
	return s.retain(Session.Available)
}

// retain всегда строит новые срезы, исходный снимок не трогаем.
func (s Snapshot) retain(keep func(Session) bool) Snapshot {
	out := Snapshot{Pincode: s.Pincode, FetchedAt: s.FetchedAt}
	for _, c := range s.Centers {
		var sessions []Session
		for _, ss := range c.Sessions {
			if !keep(ss) {
				continue
			}
			ss.Slots = slices.Clone(ss.Slots)
			sessions = append(sessions, ss)
		}
		if len(sessions) == 0 {
			continue
		}
		c.Sessions = sessions
		out.Centers = append(out.Centers, c)
	}
	return out
}
