package events

import "github.com/baechuer/real-time-ressys/services/rsvp-client/internal/domain"

// The attendance set is small, so an ordered slice keeps insertion order
// for display without a map.

func contains(ids []domain.EventID, id domain.EventID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func add(ids []domain.EventID, id domain.EventID) []domain.EventID {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func remove(ids []domain.EventID, id domain.EventID) []domain.EventID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(ids []domain.EventID) []domain.EventID {
	out := make([]domain.EventID, 0, len(ids))
	for _, id := range ids {
		out = add(out, id)
	}
	return out
}

func without(users []string, id string) []string {
	out := users[:0:0]
	for _, u := range users {
		if u != id {
			out = append(out, u)
		}
	}
	return out
}
