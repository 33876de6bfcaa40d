package receipt

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"receipt-tidy/internal/parsing"
)

var _ = Describe("Server", func() {
	var (
		store       *MemoryStore
		scanner     *mockScanner
		archive     *mockArchive
		service     *Service
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		store = NewMemoryStore()
		scanner = &mockScanner{}
		archive = newMockArchive()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(store, scanner, archive, &seqIDGenerator{})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	// do routes one request through the server under test.
	do := func(req *http.Request) *http.Response {
		ghttpServer.AppendHandlers(server.ServeHTTP)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	get := func(path string) *http.Response {
		req, err := http.NewRequest("GET", ghttpServer.URL()+path, nil)
		Expect(err).NotTo(HaveOccurred())
		return do(req)
	}

	decodeJSON := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
	}

	multipartUpload := func(filenames ...string) *http.Request {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		for _, name := range filenames {
			part, err := writer.CreateFormFile("files", name)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/receipts", &body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	record := parsing.Record{
		Date:         "2024-03-15",
		MerchantName: "편의점24",
		Amount:       4500,
	}

	Describe("POST /api/receipts", func() {
		When("uploading a batch with one failing file", func() {
			BeforeEach(func() {
				scanner.responses = []scanResponse{
					{records: []parsing.Record{record}},
					{err: errors.New("unreadable image")},
				}
			})

			It("returns the settled batch result", func() {
				resp := do(multipartUpload("a.png", "b.png"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var result BatchResult
				decodeJSON(resp, &result)
				Expect(result.Items).To(HaveLen(1))
				Expect(result.FailedCount).To(Equal(1))
				Expect(result.Outcome).To(Equal(OutcomePartial))
			})
		})

		When("no files are attached", func() {
			It("returns bad request", func() {
				resp := do(multipartUpload())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/receipts", func() {
		When("the table is empty", func() {
			It("returns an empty JSON array, not null", func() {
				resp := get("/api/receipts")
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON("[]"))
			})
		})

		When("items exist", func() {
			BeforeEach(func() {
				Expect(store.Add([]*Item{
					{ID: "id-1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500},
				})).To(Succeed())
			})

			It("lists them", func() {
				resp := get("/api/receipts")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var items []*Item
				decodeJSON(resp, &items)
				Expect(items).To(HaveLen(1))
				Expect(items[0].MerchantName).To(Equal("편의점24"))
			})
		})
	})

	Describe("PATCH /api/receipts/{id}", func() {
		BeforeEach(func() {
			Expect(store.Add([]*Item{
				{ID: "id-1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500},
			})).To(Succeed())
		})

		It("applies a field-level edit", func() {
			req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/receipts/id-1",
				bytes.NewBufferString(`{"notes": "점심"}`))
			Expect(err).NotTo(HaveOccurred())

			resp := do(req)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var item Item
			decodeJSON(resp, &item)
			Expect(item.Notes).To(Equal("점심"))
			Expect(item.Amount).To(Equal(4500))
		})

		It("rejects a negative amount", func() {
			req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/receipts/id-1",
				bytes.NewBufferString(`{"amount": -1}`))
			Expect(err).NotTo(HaveOccurred())

			resp := do(req)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns not found for an unknown id", func() {
			req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/receipts/nope",
				bytes.NewBufferString(`{"notes": "x"}`))
			Expect(err).NotTo(HaveOccurred())

			resp := do(req)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		BeforeEach(func() {
			Expect(store.Add([]*Item{
				{ID: "id-1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500},
			})).To(Succeed())
		})

		It("deletes the row", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/receipts/id-1", nil)
			Expect(err).NotTo(HaveOccurred())

			resp := do(req)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			items, _ := store.List()
			Expect(items).To(BeEmpty())
		})
	})

	Describe("DELETE /api/receipts", func() {
		BeforeEach(func() {
			Expect(store.Add([]*Item{
				{ID: "id-1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500},
				{ID: "id-2", Date: "2024-03-16", MerchantName: "스타벅스", Amount: 5500},
			})).To(Succeed())
		})

		It("clears the session", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())

			resp := do(req)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			items, _ := store.List()
			Expect(items).To(BeEmpty())
		})
	})

	Describe("GET /api/export", func() {
		BeforeEach(func() {
			Expect(store.Add([]*Item{
				{ID: "id-1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500},
			})).To(Succeed())
		})

		It("streams an xlsx attachment", func() {
			resp := get("/api/export")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(
				Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("attachment"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			// xlsx files are zip archives.
			Expect(body[:2]).To(Equal([]byte("PK")))
		})
	})

	Describe("GET /api/receipts/{id}/image", func() {
		BeforeEach(func() {
			archive.files["saved.png"] = []byte("fake image data")
			Expect(store.Add([]*Item{
				{ID: "id-1", Date: "2024-03-15", MerchantName: "편의점24", Amount: 4500, SourceImage: "saved.png"},
				{ID: "id-2", Date: "2024-03-16", MerchantName: "스타벅스", Amount: 5500},
			})).To(Succeed())
		})

		It("serves the archived upload", func() {
			resp := get("/api/receipts/id-1/image")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("fake image data")))
		})

		It("returns not found when the row has no archived image", func() {
			resp := get("/api/receipts/id-2/image")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
		})

		It("rejects requests without credentials", func() {
			resp := get("/api/receipts")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("rejects wrong credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization",
				"Basic "+base64.StdEncoding.EncodeToString([]byte("user:wrong")))

			resp := do(req)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("accepts correct credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("user", "pass")

			resp := do(req)
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
