package sieve

import (
	"reflect"
	"testing"
)

func TestWinnersDescendingScore(t *testing.T) {
	s := New(10)
	s.Sift(0.5, 1)
	s.Sift(2.0, 2)
	s.Sift(1.25, 3)

	got := s.Winners()
	want := []Winner{{2.0, 2}, {1.25, 3}, {0.5, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("winners = %+v, want %+v", got, want)
	}
}

func TestCapacityEvictsWeakest(t *testing.T) {
	s := New(2)
	s.Sift(1.0, 1)
	s.Sift(3.0, 2)
	s.Sift(2.0, 3)

	got := s.Winners()
	want := []Winner{{3.0, 2}, {2.0, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("winners = %+v, want %+v", got, want)
	}
}

func TestWeakerOfferDoesNotEvict(t *testing.T) {
	s := New(2)
	s.Sift(2.0, 1)
	s.Sift(3.0, 2)
	s.Sift(1.0, 3)

	got := s.Winners()
	want := []Winner{{3.0, 2}, {2.0, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("winners = %+v, want %+v", got, want)
	}
}

func TestEqualScoreKeepsSmallerDocID(t *testing.T) {
	s := New(1)
	s.Sift(1.0, 9)
	s.Sift(1.0, 4)
	s.Sift(1.0, 7)

	got := s.Winners()
	want := []Winner{{1.0, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("winners = %+v, want %+v", got, want)
	}
}

func TestTiedWinnersOrderedByDocID(t *testing.T) {
	s := New(3)
	s.Sift(1.0, 8)
	s.Sift(1.0, 2)
	s.Sift(1.0, 5)

	got := s.Winners()
	want := []Winner{{1.0, 2}, {1.0, 5}, {1.0, 8}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("winners = %+v, want %+v", got, want)
	}
}

func TestFewerOffersThanCapacity(t *testing.T) {
	s := New(100)
	s.Sift(1.0, 1)
	if got := s.Winners(); len(got) != 1 {
		t.Errorf("winners = %+v, want a single entry", got)
	}
}

func TestZeroCapacityRetainsNothing(t *testing.T) {
	s := New(0)
	s.Sift(5.0, 1)
	if got := s.Winners(); len(got) != 0 {
		t.Errorf("winners = %+v, want none", got)
	}
}
