package handler

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ============================================
// DEMO ENDPOINTS
// ============================================

// DemoHandler serves the fixture endpoints used by API walkthroughs. They
// keep the original plain {message, data} shape rather than the success
// envelope, and nothing here touches the store.
type DemoHandler struct{}

func NewDemoHandler() *DemoHandler {
	return &DemoHandler{}
}

type demoProduct struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

type demoUser struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt,omitempty"`
}

var demoProducts = []demoProduct{
	{ID: 101, Name: "Laptop", Price: 999.99, Category: "electronics"},
	{ID: 102, Name: "Mouse", Price: 29.99, Category: "electronics"},
	{ID: 103, Name: "Notebook", Price: 9.99, Category: "stationery"},
}

var demoUsers = []demoUser{
	{ID: 1, Name: "Alice", Email: "alice@example.com", Active: true},
	{ID: 2, Name: "Bob", Email: "bob@example.com", Active: true},
	{ID: 3, Name: "Charlie", Email: "charlie@example.com", Active: false},
}

// Products handles GET /api/products.
func (h *DemoHandler) Products(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Products catalog",
		"data":    demoProducts,
	})
}

// Users handles GET /api/users.
func (h *DemoHandler) Users(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Users list",
		"count":   len(demoUsers),
		"data":    demoUsers,
	})
}

// UserByID handles GET /api/users/{id}.
func (h *DemoHandler) UserByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err == nil {
		for _, u := range demoUsers {
			if u.ID == id {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"message": "User details",
					"data":    u,
				})
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error": "User not found",
	})
}

// CreateUser handles POST /api/users: echoes the submitted user back with a
// random id, without storing anything.
func (h *DemoHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name   string `json:"name"`
		Email  string `json:"email"`
		Active *bool  `json:"active"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid JSON body",
		})
		return
	}
	if in.Name == "" || in.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Name and email are required",
		})
		return
	}

	user := demoUser{
		ID:        rand.Intn(1000) + 100,
		Name:      in.Name,
		Email:     in.Email,
		Active:    true,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"data":    user,
	})
}
