package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"itera/internal/export"
	"itera/internal/session"
)

// Calendar serves the journey as an iCalendar file.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	if !snap.Active {
		h.respondErr(w, r, session.ErrNoJourney)
		return
	}

	j := export.Journey{
		Destination: snap.Destination,
		Stops:       snap.Stops,
		Location:    time.UTC,
	}
	if snap.JourneyID != 0 {
		j.ID = strconv.FormatInt(snap.JourneyID, 10)
	}
	if snap.Profile != nil {
		j.StartDate = snap.Profile.StartDate
	}
	if snap.Center != nil {
		j.Location = h.zoner.Location(snap.Center.Lat, snap.Center.Lon)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="itera-%s.ics"`, slug(snap.Destination)))
	w.Write([]byte(export.Calendar(j, time.Now())))
}

// slug keeps letters and digits, lowercased, for a file name.
func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		case r == ' ' || r == '-':
			if len(out) > 0 && out[len(out)-1] != '-' {
				out = append(out, '-')
			}
		}
	}
	if len(out) == 0 {
		return "journey"
	}
	return string(out)
}
