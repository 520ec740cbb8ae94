package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"transient", Transient(errors.New("rate limited")), KindTransient},
		{"auth", Auth(errors.New("bad token")), KindAuth},
		{"rejected", Rejected(errors.New("no such zone")), KindRejected},
		{"wrapped", fmt.Errorf("failed to publish: %w", Auth(errors.New("bad token"))), KindAuth},
		{"unclassified", errors.New("connection reset"), KindTransient},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := KindOf(c.err); got != c.want {
				t.Errorf("KindOf(%v) = %s, want %s", c.err, got, c.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		want ErrorKind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusServiceUnavailable, KindTransient},
		{http.StatusBadRequest, KindRejected},
		{http.StatusNotFound, KindRejected},
	}
	for _, c := range cases {
		err := ClassifyStatus(c.code, fmt.Errorf("unexpected status %d", c.code))
		if got := KindOf(err); got != c.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", c.code, got, c.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	if !errors.Is(Transient(inner), inner) {
		t.Error("expected errors.Is to see through the classification wrapper")
	}
}
