package ledger

import (
	"time"

	"cloud.google.com/go/civil"
)

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

func (s *Service) startOf(d civil.Date) time.Time {
	return d.In(s.loc)
}

// mondayOf returns the Monday starting the ISO week that contains d.
func mondayOf(d civil.Date, loc *time.Location) civil.Date {
	offset := (int(d.In(loc).Weekday()) + 6) % 7
	return d.AddDays(-offset)
}
