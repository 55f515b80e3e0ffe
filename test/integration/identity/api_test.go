// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package identity_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/identity/internal/auth"
	authpg "github.com/holomush/identity/internal/auth/postgres"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message json.RawMessage `json:"message"`
}

func do(srv *httptest.Server, method, path, body string) apiResponse {
	GinkgoHelper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var out apiResponse
	Expect(json.Unmarshal(raw, &out)).To(Succeed(), string(raw))
	Expect(out.Code).To(Equal(resp.StatusCode))
	return out
}

func kindOf(r apiResponse) string {
	GinkgoHelper()
	var kind string
	Expect(json.Unmarshal(r.Data, &kind)).To(Succeed())
	return kind
}

func login(srv *httptest.Server, username, password string) string {
	GinkgoHelper()
	r := do(srv, http.MethodPost, "/sessions",
		`{"username":"`+username+`","password":"`+password+`"}`)
	Expect(r.Code).To(Equal(http.StatusOK))
	var data struct {
		Token string `json:"token"`
	}
	Expect(json.Unmarshal(r.Data, &data)).To(Succeed())
	Expect(data.Token).NotTo(BeEmpty())
	return data.Token
}

var _ = Describe("Identity API", func() {
	BeforeEach(func() {
		env.resetData()
	})

	for _, storeName := range []string{"redis", "postgres"} {
		Context("with the "+storeName+" session store", func() {
			var srv *httptest.Server

			BeforeEach(func() {
				srv = env.newServer(storeName, time.Hour)
			})

			It("runs the session lifecycle", func() {
				reg := do(srv, http.MethodPost, "/users",
					`{"username":"joe","password":"test","email":"joe@example.com"}`)
				Expect(reg.Code).To(Equal(http.StatusOK))

				var user auth.PublicUser
				Expect(json.Unmarshal(reg.Data, &user)).To(Succeed())
				Expect(user.Username).To(Equal("joe"))
				Expect(string(reg.Data)).NotTo(ContainSubstring("password"))

				token := login(srv, "joe", "test")

				read := do(srv, http.MethodGet, "/sessions/"+token, "")
				Expect(read.Code).To(Equal(http.StatusOK))
				Expect(string(read.Data)).To(ContainSubstring(`"email":"joe@example.com"`))

				ext := do(srv, http.MethodPut, "/sessions/"+token, "")
				Expect(ext.Code).To(Equal(http.StatusOK))
				Expect(string(ext.Data)).To(ContainSubstring(token))

				Expect(do(srv, http.MethodDelete, "/sessions/"+token, "").Code).To(Equal(http.StatusOK))
				Expect(do(srv, http.MethodDelete, "/sessions/"+token, "").Code).To(Equal(http.StatusOK))

				gone := do(srv, http.MethodGet, "/sessions/"+token, "")
				Expect(gone.Code).To(Equal(http.StatusNotFound))
				Expect(kindOf(gone)).To(Equal("NotFoundError"))
			})

			It("issues distinct tokens per login", func() {
				do(srv, http.MethodPost, "/users", `{"username":"joe","password":"test","email":"joe@example.com"}`)

				first := login(srv, "joe", "test")
				second := login(srv, "joe", "test")

				Expect(first).NotTo(Equal(second))
				Expect(do(srv, http.MethodGet, "/sessions/"+first, "").Code).To(Equal(http.StatusOK))
				Expect(do(srv, http.MethodGet, "/sessions/"+second, "").Code).To(Equal(http.StatusOK))
			})

			It("rejects a wrong password", func() {
				do(srv, http.MethodPost, "/users", `{"username":"joe","password":"test","email":"joe@example.com"}`)

				r := do(srv, http.MethodPost, "/sessions", `{"username":"joe","password":"nope"}`)

				Expect(r.Code).To(Equal(http.StatusBadRequest))
				Expect(kindOf(r)).To(Equal("InvalidCredentialsError"))
			})
		})
	}

	It("reports a duplicate username as a conflict", func() {
		srv := env.newServer("redis", time.Hour)
		body := `{"username":"joe","password":"test","email":"joe@example.com"}`

		Expect(do(srv, http.MethodPost, "/users", body).Code).To(Equal(http.StatusOK))
		dup := do(srv, http.MethodPost, "/users", body)

		Expect(dup.Code).To(Equal(http.StatusConflict))
		Expect(kindOf(dup)).To(Equal("ConflictError"))
	})

	DescribeTable("expires sessions after the TTL",
		func(storeName string) {
			srv := env.newServer(storeName, time.Second)
			do(srv, http.MethodPost, "/users", `{"username":"joe","password":"test","email":"joe@example.com"}`)
			token := login(srv, "joe", "test")

			Expect(do(srv, http.MethodGet, "/sessions/"+token, "").Code).To(Equal(http.StatusOK))
			Eventually(func() int {
				return do(srv, http.MethodGet, "/sessions/"+token, "").Code
			}).WithTimeout(5 * time.Second).WithPolling(250 * time.Millisecond).
				Should(Equal(http.StatusNotFound))
		},
		Entry("redis", "redis"),
		Entry("postgres", "postgres"),
	)

	It("removes expired postgres rows on sweep", func() {
		store := authpg.NewSessionStore(env.pool)
		Expect(store.Set(env.ctx, "stale", []byte(`{}`), time.Millisecond)).To(Succeed())
		Expect(store.Set(env.ctx, "fresh", []byte(`{}`), time.Hour)).To(Succeed())

		Eventually(func() (int64, error) {
			return store.DeleteExpired(env.ctx)
		}).WithTimeout(5 * time.Second).Should(BeNumerically("==", 1))

		_, err := store.Get(env.ctx, "fresh")
		Expect(err).NotTo(HaveOccurred())
	})
})
