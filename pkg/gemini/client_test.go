package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lexchat/pkg/gemini"
	"github.com/papercomputeco/lexchat/pkg/generator"
	"github.com/papercomputeco/lexchat/pkg/llm"
)

func textEvent(text, finish string) string {
	ev := map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]string{{"text": text}}},
			"finishReason": finish,
		}},
	}
	b, _ := json.Marshal(ev)
	return "data: " + string(b) + "\r\n\r\n"
}

func drain(r generator.FragmentReader) ([]string, error) {
	var out []string
	for {
		f, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
		gotReq  *http.Request
		gotBody []byte
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotReq = r
			gotBody, _ = io.ReadAll(r.Body)
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *gemini.Client {
		return gemini.NewClient(gemini.Config{APIKey: "secret", BaseURL: server.URL, Model: "test-model"}, nil)
	}

	request := func() *llm.GenerateRequest {
		return generator.New(nil).Request("É crime dirigir sem habilitação?")
	}

	It("applies defaults", func() {
		c := gemini.NewClient(gemini.Config{}, nil)
		Expect(c.Model()).To(Equal(gemini.DefaultModel))
	})

	It("posts the request to the streaming endpoint with the key header", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, textEvent("ok", "STOP"))
		}

		r, err := newClient().StreamGenerateContent(ctx, request())
		Expect(err).NotTo(HaveOccurred())
		_, _ = drain(r)
		Expect(r.Close()).To(Succeed())

		Expect(gotReq.Method).To(Equal(http.MethodPost))
		Expect(gotReq.URL.Path).To(Equal("/v1beta/models/test-model:streamGenerateContent"))
		Expect(gotReq.URL.Query().Get("alt")).To(Equal("sse"))
		Expect(gotReq.Header.Get("x-goog-api-key")).To(Equal("secret"))

		var body map[string]any
		Expect(json.Unmarshal(gotBody, &body)).To(Succeed())
		Expect(body).To(HaveKey("contents"))
		Expect(body).To(HaveKey("safetySettings"))
		cfg := body["generationConfig"].(map[string]any)
		Expect(cfg["temperature"]).To(BeNumerically("==", 1))
		Expect(cfg["topP"]).To(BeNumerically("==", 0.95))
		Expect(cfg["topK"]).To(BeNumerically("==", 64))
		Expect(cfg["maxOutputTokens"]).To(BeNumerically("==", 8192))
		Expect(body).NotTo(HaveKey("Model"))
	})

	It("prefers the model named on the request", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {}
		req := request()
		req.Model = "other-model"

		r, err := newClient().StreamGenerateContent(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Close()).To(Succeed())
		Expect(gotReq.URL.Path).To(ContainSubstring("/models/other-model:"))
	})

	It("wires a generator that streams from the configured model", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, textEvent("Sim, ", ""))
			fmt.Fprint(w, textEvent("é crime.", "STOP"))
		}

		g := gemini.NewGenerator(gemini.Config{APIKey: "secret", BaseURL: server.URL, Model: "test-model"}, nil)
		s, err := g.Generate(ctx, "É crime dirigir sem habilitação?")
		Expect(err).NotTo(HaveOccurred())
		for s.Next() {
		}

		Expect(s.Err()).NotTo(HaveOccurred())
		Expect(s.Text()).To(Equal("Sim, é crime."))
		Expect(gotReq.URL.Path).To(Equal("/v1beta/models/test-model:streamGenerateContent"))
	})

	It("yields one fragment per event until the stream ends", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, ": keep-alive\n\n")
			fmt.Fprint(w, textEvent("Sim, ", ""))
			fmt.Fprint(w, textEvent("dirigir sem habilitação ", ""))
			fmt.Fprint(w, textEvent("é contravenção/crime conforme o CTB.", "STOP"))
		}

		r, err := newClient().StreamGenerateContent(ctx, request())
		Expect(err).NotTo(HaveOccurred())
		frags, err := drain(r)

		Expect(err).NotTo(HaveOccurred())
		Expect(frags).To(Equal([]string{"Sim, ", "dirigir sem habilitação ", "é contravenção/crime conforme o CTB."}))

		_, err = r.Recv()
		Expect(err).To(MatchError(io.EOF))
	})

	It("handles a final event without a trailing blank line", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, strings.TrimSuffix(textEvent("fim", "STOP"), "\r\n\r\n"))
		}

		r, _ := newClient().StreamGenerateContent(ctx, request())
		frags, err := drain(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(frags).To(Equal([]string{"fim"}))
	})

	Context("when the API rejects the call", func() {
		It("returns an APIError decoded from the body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
			}

			r, err := newClient().StreamGenerateContent(ctx, request())

			Expect(r).To(BeNil())
			var apiErr *gemini.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(429))
			Expect(apiErr.Status).To(Equal("RESOURCE_EXHAUSTED"))
			Expect(apiErr.Message).To(Equal("Quota exceeded"))
		})

		It("falls back to the raw body", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, "upstream down")
			}

			_, err := newClient().StreamGenerateContent(ctx, request())
			Expect(err).To(MatchError(ContainSubstring("upstream down")))
		})
	})

	Context("when the safety policy intervenes", func() {
		It("fails on a blocked prompt", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "data: {\"promptFeedback\":{\"blockReason\":\"SAFETY\"}}\n\n")
			}

			r, err := newClient().StreamGenerateContent(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			frags, err := drain(r)

			Expect(frags).To(BeEmpty())
			var blocked *gemini.BlockedError
			Expect(errors.As(err, &blocked)).To(BeTrue())
			Expect(blocked.Reason).To(Equal("SAFETY"))
		})

		It("delivers text that arrived with a safety stop, then fails", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, textEvent("Sim, ", ""))
				fmt.Fprint(w, textEvent("mas", "SAFETY"))
				fmt.Fprint(w, textEvent("never read", ""))
			}

			r, _ := newClient().StreamGenerateContent(ctx, request())
			frags, err := drain(r)

			Expect(frags).To(Equal([]string{"Sim, ", "mas"}))
			Expect(err).To(BeAssignableToTypeOf(&gemini.BlockedError{}))
		})
	})

	It("fails on an error event mid-stream", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, textEvent("parcial", ""))
			fmt.Fprint(w, "data: {\"error\":{\"code\":500,\"message\":\"internal\",\"status\":\"INTERNAL\"}}\n\n")
		}

		r, _ := newClient().StreamGenerateContent(ctx, request())
		frags, err := drain(r)

		Expect(frags).To(Equal([]string{"parcial"}))
		var apiErr *gemini.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.Status).To(Equal("INTERNAL"))
	})

	It("fails on malformed events", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "data: {not json\n\n")
		}

		r, _ := newClient().StreamGenerateContent(ctx, request())
		_, err := drain(r)
		Expect(err).To(MatchError(ContainSubstring("malformed stream event")))
	})

	It("plugs into the generator as its service", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, textEvent("a", ""))
			fmt.Fprint(w, textEvent("b", "STOP"))
		}

		s, err := generator.New(newClient()).Generate(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		for s.Next() {
		}
		Expect(s.Err()).NotTo(HaveOccurred())
		Expect(s.Text()).To(Equal("ab"))
	})
})
