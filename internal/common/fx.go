// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"time"
)

// NBP publishes table A exchange rates on business days, typically between
// 11:45 and 12:15 Warsaw time. The refresh schedule keys off the later bound.
const (
	nbpPublishHour   = 12
	nbpPublishMinute = 15
	nbpTimezone      = "Europe/Warsaw"
)

// StalenessResult contains the result of an FX-cache staleness check.
type StalenessResult struct {
	// IsStale indicates whether the cached rate is stale and needs refresh.
	IsStale bool
	// NextCheckTime is when to check again if the rate is not currently stale.
	NextCheckTime time.Time
	// Reason provides a human-readable explanation for the decision.
	Reason string
}

// CheckRateStaleness determines whether a cached "latest" NBP rate is stale.
// rateDate is the effective date of the cached rate; now is the current time.
// Rates fetched for an explicit historic date never go stale and should not
// be passed through this check.
func CheckRateStaleness(rateDate time.Time, now time.Time) StalenessResult {
	loc, err := time.LoadLocation(nbpTimezone)
	if err != nil {
		// Without the publication timezone assume stale so callers refetch
		return StalenessResult{
			IsStale: true,
			Reason:  fmt.Sprintf("failed to load timezone %s: %v", nbpTimezone, err),
		}
	}

	nowLocal := now.In(loc)
	rateDay := dateOnly(rateDate.In(loc))

	lastPublication := lastPublicationDay(nowLocal, loc)

	if rateDay.Before(lastPublication) {
		return StalenessResult{
			IsStale: true,
			Reason: fmt.Sprintf("cached rate from %s is older than last publication day %s",
				rateDay.Format("2006-01-02"), lastPublication.Format("2006-01-02")),
		}
	}

	next := nextPublicationTime(nowLocal, loc)
	return StalenessResult{
		IsStale:       false,
		NextCheckTime: next,
		Reason: fmt.Sprintf("rate from %s is current, next publication at %s",
			rateDay.Format("2006-01-02"), next.Format("2006-01-02 15:04 MST")),
	}
}

// IsNBPBusinessDay reports whether NBP publishes rates on the given day.
// Weekends are skipped; statutory holidays are not modelled and surface as a
// failed fetch that the caller retries the next day.
func IsNBPBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// lastPublicationDay returns the most recent day whose publication time has
// already passed, walking back over weekends.
func lastPublicationDay(nowLocal time.Time, loc *time.Location) time.Time {
	current := dateOnly(nowLocal)
	if nowLocal.Before(publicationTime(current, loc)) {
		current = current.AddDate(0, 0, -1)
	}
	for i := 0; i < 7; i++ {
		if IsNBPBusinessDay(current) {
			return current
		}
		current = current.AddDate(0, 0, -1)
	}
	return current
}

// nextPublicationTime returns the next moment new rates appear.
func nextPublicationTime(nowLocal time.Time, loc *time.Location) time.Time {
	current := dateOnly(nowLocal)
	if !nowLocal.Before(publicationTime(current, loc)) {
		current = current.AddDate(0, 0, 1)
	}
	for i := 0; i < 7; i++ {
		if IsNBPBusinessDay(current) {
			return publicationTime(current, loc)
		}
		current = current.AddDate(0, 0, 1)
	}
	return publicationTime(current, loc)
}

func publicationTime(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), nbpPublishHour, nbpPublishMinute, 0, 0, loc)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
