package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/okian/aura/internal/adapters/http/api"
	service "github.com/okian/aura/internal/app"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/types"
	"github.com/okian/aura/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const batchWithMissingX = `{"batchId":"b-1","round":1,"samples":[
	{"tms":0,"x":0.1,"y":0.1},
	{"tms":10,"x":0.2,"y":0.1},
	{"tms":20,"y":0.1},
	{"tms":30,"x":0.4,"y":0.1},
	{"tms":40,"x":0.5,"y":0.1}
]}`

type errorBody struct {
	Code     string               `json:"code"`
	Message  string               `json:"message"`
	Rejected []types.RejectedItem `json:"rejected"`
}

func newMux(opts ...api.Option) (*http.ServeMux, func()) {
	svc := service.New(service.WithWorkerCount(2))
	So(svc.Start(context.Background()), ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc, svc, opts...).Register(context.Background(), mux)
	return mux, svc.Stop
}

func do(mux *http.ServeMux, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, stop := newMux()
		defer stop()

		Convey("Then the health endpoint serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint serves service stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then unknown paths are not found", func() {
			w := do(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are refused", func() {
			w := do(mux, http.MethodGet, "/v1/features", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSamplesEndpoints(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, stop := newMux()
		defer stop()

		Convey("When a batch of five samples has one without x", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", batchWithMissingX)

			Convey("Then four are accepted and index 2 is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[types.BatchResult](w)
				So(res.Accepted, ShouldEqual, 4)
				So(res.Total, ShouldEqual, 4)
				So(res.Rejected, ShouldHaveLength, 1)
				So(res.Rejected[0].Index, ShouldEqual, 2)
			})

			Convey("And a retry of the same batch id is acknowledged as a duplicate", func() {
				retry := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", batchWithMissingX)
				So(retry.Code, ShouldEqual, http.StatusOK)
				So(decode[types.BatchResult](retry).Duplicate, ShouldBeTrue)

				list := do(mux, http.MethodGet, "/v1/subjects/s-1/samples?round=1", "")
				So(list.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](list)["count"], ShouldEqual, 4.0)
			})

			Convey("And the same batch id for another subject is new", func() {
				other := do(mux, http.MethodPost, "/v1/subjects/s-2/samples", batchWithMissingX)
				So(decode[types.BatchResult](other).Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the batch is empty", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", `{"round":1,"samples":[]}`)

			Convey("Then it is a bad request with code empty_batch", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "empty_batch")
			})
		})

		Convey("When every sample is invalid", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", `{"batchId":"b-9","round":1,"samples":[{"x":0.1},{"y":0.2}]}`)

			Convey("Then the rejected list comes back and the batch id is released", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decode[errorBody](w)
				So(body.Code, ShouldEqual, "all_rejected")
				So(body.Rejected, ShouldHaveLength, 2)

				fixed := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", `{"batchId":"b-9","round":1,"samples":[{"tms":1,"x":0.1,"y":0.2}]}`)
				So(fixed.Code, ShouldEqual, http.StatusOK)
				So(decode[types.BatchResult](fixed).Accepted, ShouldEqual, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", `{nope`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When the round filter is out of range", func() {
			w := do(mux, http.MethodGet, "/v1/subjects/s-1/samples?round=9", "")

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestCompressedBodies(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, stop := newMux()
		defer stop()
		body := `{"round":2,"samples":[{"tms":0,"x":0.1,"y":0.1},{"tms":5,"x":0.2,"y":0.1}]}`

		Convey("When the body is gzip encoded", func() {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write([]byte(body))
			So(err, ShouldBeNil)
			So(zw.Close(), ShouldBeNil)
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", buf.String(), "Content-Encoding", "gzip")

			Convey("Then it is inflated and stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.BatchResult](w).Accepted, ShouldEqual, 2)
			})
		})

		Convey("When the body is zstd encoded", func() {
			enc, err := zstd.NewWriter(nil)
			So(err, ShouldBeNil)
			compressed := enc.EncodeAll([]byte(body), nil)
			So(enc.Close(), ShouldBeNil)
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", string(compressed), "Content-Encoding", "zstd")

			Convey("Then it is inflated and stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.BatchResult](w).Accepted, ShouldEqual, 2)
			})
		})

		Convey("When the encoding is unknown", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", body, "Content-Encoding", "br")

			Convey("Then the media type is unsupported", func() {
				So(w.Code, ShouldEqual, http.StatusUnsupportedMediaType)
			})
		})
	})

	Convey("Given a server with a small body limit", t, func() {
		mux, stop := newMux(api.WithMaxBodyBytes(256))
		defer stop()
		large := `{"round":1,"samples":[` + strings.Repeat(`{"tms":1,"x":0.1,"y":0.1},`, 40) + `{"tms":1,"x":0.1,"y":0.1}]}`

		Convey("When the body is larger than the limit", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", large)

			Convey("Then it is refused as too large", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})

		Convey("When a small gzip body inflates past the limit", func() {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write([]byte(large))
			So(err, ShouldBeNil)
			So(zw.Close(), ShouldBeNil)
			So(buf.Len(), ShouldBeLessThan, 256)
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", buf.String(), "Content-Encoding", "gzip")

			Convey("Then it is refused as too large", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			})
		})
	})
}

func TestAttemptAndSummaryEndpoints(t *testing.T) {
	Convey("Given a subject with one recorded reach", t, func() {
		mux, stop := newMux()
		defer stop()

		w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", `{"round":1,"samples":[
			{"tms":0,"x":0.1,"y":0.1},{"tms":100,"x":0.5,"y":0.1},{"tms":200,"x":0.5,"y":0.5}]}`)
		So(w.Code, ShouldEqual, http.StatusOK)
		w = do(mux, http.MethodPost, "/v1/subjects/s-1/attempts", `{"attempts":[
			{"round":1,"attemptId":"a1","spawnTms":0,"target":{"x":0.5,"y":0.5,"radius":0.05},
			 "click":{"clicked":true,"hit":true,"tms":200,"x":0.5,"y":0.5}}]}`)
		So(w.Code, ShouldEqual, http.StatusOK)

		Convey("When the stored attempts are listed", func() {
			list := do(mux, http.MethodGet, "/v1/subjects/s-1/attempts", "")

			Convey("Then they carry their features", func() {
				So(list.Code, ShouldEqual, http.StatusOK)
				body := decode[struct {
					Attempts []model.Attempt `json:"attempts"`
				}](list)
				So(body.Attempts, ShouldHaveLength, 1)
				So(body.Attempts[0].Enrichment.Status, ShouldEqual, model.EnrichmentOK)
				So(*body.Attempts[0].Spatial.Straightness, ShouldAlmostEqual, 0.7071, 1e-4)
			})
		})

		Convey("When round 1 is summarised", func() {
			rs := do(mux, http.MethodGet, "/v1/subjects/s-1/summary/rounds/1", "")

			Convey("Then the counts are returned", func() {
				So(rs.Code, ShouldEqual, http.StatusOK)
				body := decode[map[string]any](rs)
				So(body["nAttempts"], ShouldEqual, 1.0)
				So(body["hitRate"], ShouldEqual, 1.0)
			})
		})

		Convey("When a round without attempts is summarised", func() {
			rs := do(mux, http.MethodGet, "/v1/subjects/s-1/summary/rounds/2", "")

			Convey("Then it is not found with code no_data", func() {
				So(rs.Code, ShouldEqual, http.StatusNotFound)
				So(decode[errorBody](rs).Code, ShouldEqual, "no_data")
			})
		})

		Convey("When the round is not a number", func() {
			rs := do(mux, http.MethodGet, "/v1/subjects/s-1/summary/rounds/first", "")

			Convey("Then it is a bad request", func() {
				So(rs.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the session is summarised", func() {
			ss := do(mux, http.MethodGet, "/v1/subjects/s-1/summary", "")

			Convey("Then it includes the score", func() {
				So(ss.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]any](ss)["score"], ShouldNotBeNil)
			})
		})

		Convey("When interactions are posted and tallied", func() {
			p := do(mux, http.MethodPost, "/v1/subjects/s-1/interactions",
				`{"interactions":[{"timestamp":1,"eventType":"click"},{"timestamp":2,"eventType":"keydown"}]}`)
			So(p.Code, ShouldEqual, http.StatusOK)
			st := do(mux, http.MethodGet, "/v1/subjects/s-1/interactions/stats", "")

			Convey("Then the stats count them", func() {
				So(st.Code, ShouldEqual, http.StatusOK)
				body := decode[map[string]any](st)
				So(body["totalInteractions"], ShouldEqual, 2.0)
				So(body["clicks"], ShouldEqual, 1.0)
			})
		})
	})
}

func TestFeaturesEndpoint(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, stop := newMux()
		defer stop()

		Convey("When a window is posted", func() {
			w := do(mux, http.MethodPost, "/v1/features", `{"spawnTms":0,"clickTms":200,
				"target":{"x":0.5,"y":0.5,"radius":0.05},
				"samples":[{"tms":0,"x":0.1,"y":0.1},{"tms":100,"x":0.5,"y":0.1},{"tms":200,"x":0.5,"y":0.5}]}`)

			Convey("Then the features are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"reactionTimeMs":100`)
			})
		})

		Convey("When the click precedes the spawn", func() {
			w := do(mux, http.MethodPost, "/v1/features", `{"spawnTms":100,"clickTms":50,"target":{"x":0.5,"y":0.5,"radius":0.05}}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestStoppedService(t *testing.T) {
	Convey("Given a server over a service that was never started", t, func() {
		svc := service.New()
		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)

		Convey("When data is posted", func() {
			w := do(mux, http.MethodPost, "/v1/subjects/s-1/samples", batchWithMissingX)

			Convey("Then the service is reported unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode[errorBody](w).Code, ShouldEqual, "backpressure")
			})
		})
	})
}
