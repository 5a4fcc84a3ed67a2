package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/flok/internal/adapters/http/api"
	service "github.com/okian/flok/internal/app"
	"github.com/okian/flok/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)

const userBody = `{"interest_tags":["hiking"],"location":{"lat":52.52,"lng":13.405},
	"max_travel_mins":60,"group_pref":"small","intensity_pref":"low","goal":"friends"}`

const meetupBody = `{"title":"Sunday hike","category":"outdoor","capacity":1,"tags":["hiking"],
	"window":{"start":"2026-05-03T10:00:00Z","end":"2026-05-03T13:00:00Z"},
	"location":{"lat":52.52,"lng":13.405},"group_size":"small","intensity":"low"}`

type apiResponse struct {
	Code      string  `json:"code"`
	Field     string  `json:"field"`
	Status    string  `json:"status"`
	ID        string  `json:"id"`
	Duplicate bool    `json:"duplicate"`
	Pulse     float64 `json:"pulse"`
	Changed   bool    `json:"changed"`
	// Opportunity detail and score breakdown.
	Eligible     bool    `json:"eligible"`
	FinalScore   float64 `json:"final_score"`
	SeatsLeft    int     `json:"seats_left"`
	PulseHistory []struct {
		Pulse float64 `json:"pulse"`
	} `json:"pulse_history"`
	Items []struct {
		OpportunityID string `json:"opportunity_id"`
		Eligible      bool   `json:"eligible"`
	} `json:"items"`
	Assignments []struct {
		UserID        string `json:"user_id"`
		OpportunityID string `json:"opportunity_id"`
	} `json:"assignments"`
	Unassigned []string `json:"unassigned"`
}

func do(h http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp apiResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func newRouter() (http.Handler, *service.Service) {
	svc := service.New(
		service.WithWorkerCount(1),
		service.WithClock(func() time.Time { return t0 }),
	)
	So(svc.Start(context.Background()), ShouldBeNil)
	return api.NewServer(svc).Router(), svc
}

func TestHealthAndMetrics(t *testing.T) {
	Convey("Given an API router", t, func() {
		h, svc := newRouter()
		defer svc.Stop()

		Convey("When calling /healthz", func() {
			rec, resp := do(h, http.MethodGet, "/healthz", "")

			Convey("Then it should report ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(resp.Status, ShouldEqual, "ok")
			})
		})

		Convey("When scraping /metrics after a request", func() {
			do(h, http.MethodGet, "/healthz", "")
			rec, _ := do(h, http.MethodGet, "/metrics", "")

			Convey("Then request metrics should be exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "flok_core_http_requests_total")
			})
		})

		Convey("When calling /stats", func() {
			rec, _ := do(h, http.MethodGet, "/stats", "")

			Convey("Then it should report a started service", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
			})
		})
	})
}

func TestDirectoryAndPulse(t *testing.T) {
	Convey("Given an API router", t, func() {
		h, svc := newRouter()
		defer svc.Stop()

		Convey("When a meetup is created", func() {
			rec, _ := do(h, http.MethodPut, "/opportunities/hike", meetupBody)
			So(rec.Code, ShouldEqual, http.StatusOK)

			Convey("Then its pulse should be neutral", func() {
				rec, resp := do(h, http.MethodGet, "/opportunities/hike/pulse", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(resp.Pulse, ShouldEqual, 50.0)
			})
		})

		Convey("When the body id disagrees with the path", func() {
			rec, resp := do(h, http.MethodPut, "/users/u1", `{"id":"u2"}`)

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "id")
			})
		})

		Convey("When a meetup has negative capacity", func() {
			rec, resp := do(h, http.MethodPut, "/opportunities/bad", `{"capacity":-1}`)

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "capacity")
			})
		})

		Convey("When reading the pulse of an unknown meetup", func() {
			rec, resp := do(h, http.MethodGet, "/opportunities/nope/pulse", "")

			Convey("Then it should not be found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(resp.Code, ShouldEqual, "not_found")
			})
		})
	})
}

func TestInteractions(t *testing.T) {
	Convey("Given an API router", t, func() {
		h, svc := newRouter()
		defer svc.Stop()

		Convey("When posting a valid interaction twice", func() {
			body := `{"id":"ix-1","user_id":"u1","opportunity_id":"hike","kind":"clicked","at":"2026-05-02T18:00:00Z"}`
			first, firstResp := do(h, http.MethodPost, "/interactions", body)
			second, secondResp := do(h, http.MethodPost, "/interactions", body)

			Convey("Then it should be accepted once and acknowledged as a duplicate", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(firstResp.ID, ShouldEqual, "ix-1")
				So(second.Code, ShouldEqual, http.StatusOK)
				So(secondResp.Duplicate, ShouldBeTrue)
			})
		})

		Convey("When the kind is unknown", func() {
			rec, resp := do(h, http.MethodPost, "/interactions", `{"opportunity_id":"hike","kind":"liked"}`)

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "kind")
			})
		})

		Convey("When the timestamp is malformed", func() {
			rec, resp := do(h, http.MethodPost, "/interactions", `{"opportunity_id":"hike","kind":"shown","at":"yesterday"}`)

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "at")
			})
		})

		Convey("When the body is not JSON", func() {
			rec, resp := do(h, http.MethodPost, "/interactions", `{`)

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Code, ShouldEqual, "bad_request")
			})
		})
	})
}

func TestBookingAndRanking(t *testing.T) {
	Convey("Given two users and a single-seat meetup", t, func() {
		h, svc := newRouter()
		defer svc.Stop()
		for _, path := range []string{"/users/u1", "/users/u2"} {
			rec, _ := do(h, http.MethodPut, path, userBody)
			So(rec.Code, ShouldEqual, http.StatusOK)
		}
		rec, _ := do(h, http.MethodPut, "/opportunities/hike", meetupBody)
		So(rec.Code, ShouldEqual, http.StatusOK)

		Convey("When both users RSVP", func() {
			first, firstResp := do(h, http.MethodPost, "/opportunities/hike/rsvp", `{"user_id":"u1"}`)
			second, _ := do(h, http.MethodPost, "/opportunities/hike/rsvp", `{"user_id":"u2"}`)

			Convey("Then the second should conflict", func() {
				So(first.Code, ShouldEqual, http.StatusOK)
				So(firstResp.Changed, ShouldBeTrue)
				So(second.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then the meetup should be ineligible in the other user's feed", func() {
				rec, resp := do(h, http.MethodGet, "/users/u2/feed?limit=5", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(resp.Items), ShouldEqual, 1)
				So(resp.Items[0].Eligible, ShouldBeFalse)
			})

			Convey("Then cancelling should free the seat", func() {
				rec, resp := do(h, http.MethodDelete, "/opportunities/hike/rsvp?user_id=u1", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(resp.Changed, ShouldBeTrue)
			})
		})

		Convey("When cancelling without a user", func() {
			rec, resp := do(h, http.MethodDelete, "/opportunities/hike/rsvp", "")

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "user_id")
			})
		})

		Convey("When the feed limit is not a number", func() {
			rec, _ := do(h, http.MethodGet, "/users/u1/feed?limit=many", "")

			Convey("Then it should be a bad request", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When ranking an unknown candidate", func() {
			rec, _ := do(h, http.MethodPost, "/users/u1/rank", `{"candidates":["hike","ghost"]}`)

			Convey("Then it should not be found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When ranking explicit candidates", func() {
			rec, resp := do(h, http.MethodPost, "/users/u1/rank", `{"candidates":["hike"]}`)

			Convey("Then the meetup should be eligible", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(resp.Items[0].OpportunityID, ShouldEqual, "hike")
				So(resp.Items[0].Eligible, ShouldBeTrue)
			})
		})

		Convey("When rebalancing with an empty body", func() {
			rec, resp := do(h, http.MethodPost, "/rebalance", "")

			Convey("Then one user should get the seat", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(resp.Assignments), ShouldEqual, 1)
				So(len(resp.Unassigned), ShouldEqual, 1)
			})
		})

		Convey("When rebalancing with an out of range top_k", func() {
			rec, resp := do(h, http.MethodPost, "/rebalance", `{"top_k":99}`)

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "top_k")
			})
		})

		Convey("When reading trending", func() {
			rec, resp := do(h, http.MethodGet, "/trending?limit=3", "")

			Convey("Then the meetup should be listed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(resp.Items), ShouldEqual, 1)
			})
		})
	})
}

func TestExplainAndDetail(t *testing.T) {
	Convey("Given a user and a meetup", t, func() {
		h, svc := newRouter()
		defer svc.Stop()
		rec, _ := do(h, http.MethodPut, "/users/u1", userBody)
		So(rec.Code, ShouldEqual, http.StatusOK)
		rec, _ = do(h, http.MethodPut, "/opportunities/hike", meetupBody)
		So(rec.Code, ShouldEqual, http.StatusOK)

		Convey("When explaining the pair", func() {
			rec, resp := do(h, http.MethodGet, "/opportunities/hike/explain?user_id=u1", "")

			Convey("Then the breakdown should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(resp.Eligible, ShouldBeTrue)
				So(resp.Pulse, ShouldEqual, 50.0)
				So(resp.FinalScore, ShouldBeGreaterThan, 0)
				So(rec.Body.String(), ShouldContainSubstring, `"s_ml_raw"`)
				So(rec.Body.String(), ShouldContainSubstring, `"price_adjustment"`)
			})
		})

		Convey("When explaining without a user", func() {
			rec, resp := do(h, http.MethodGet, "/opportunities/hike/explain", "")

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "user_id")
			})
		})

		Convey("When explaining for an unknown user", func() {
			rec, _ := do(h, http.MethodGet, "/opportunities/hike/explain?user_id=ghost", "")

			Convey("Then it should not be found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When reading the meetup after a rebalance", func() {
			rec, _ := do(h, http.MethodPost, "/rebalance", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			rec, resp := do(h, http.MethodGet, "/opportunities/hike?include_history=true", "")

			Convey("Then the recorded pulse should be listed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(resp.ID, ShouldEqual, "hike")
				So(resp.SeatsLeft, ShouldEqual, 1)
				So(len(resp.PulseHistory), ShouldEqual, 1)
				So(resp.PulseHistory[0].Pulse, ShouldEqual, 50.0)
			})

			Convey("Then the history should be left out unless asked for", func() {
				_, resp := do(h, http.MethodGet, "/opportunities/hike", "")
				So(resp.ID, ShouldEqual, "hike")
				So(resp.PulseHistory, ShouldBeEmpty)
			})
		})

		Convey("When include_history is not a boolean", func() {
			rec, resp := do(h, http.MethodGet, "/opportunities/hike?include_history=maybe", "")

			Convey("Then it should be rejected with the field", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(resp.Field, ShouldEqual, "include_history")
			})
		})
	})
}

func TestWrapKind(t *testing.T) {
	Convey("Given an error wrapped with a kind", t, func() {
		err := api.WrapKind("api.op", api.ErrBadRequest, model.InvalidField("x", "bad"))

		Convey("Then both the kind and the cause should match", func() {
			So(err.Error(), ShouldEqual, "api.op: bad request: invalid x: bad")
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			So(api.Wrap("op", nil), ShouldBeNil)
		})
	})
}
