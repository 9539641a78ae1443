// Package remotetest runs an in-process fake of the remote storefront API
// for tests. It keeps its state in memory, issues real (HS256) JWTs, counts
// requests per route and can simulate outages or force a status per route.
package remotetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tbourn/go-storefront-client/internal/domain"
)

const anonymous = "anonymous"

var secret = []byte("remotetest-secret")

type account struct {
	user     domain.User
	password string
}

// Server is the fake remote. All exported methods are safe for concurrent
// use with in-flight requests.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	down      bool
	forced    map[string]int
	hits      map[string]int
	accounts  map[string]*account // by email
	access    map[string]string   // access token -> user id
	refresh   map[string]string   // refresh token -> user id
	carts     map[string]*domain.Cart
	wishlists map[string]domain.Wishlist
	products  []domain.Product
	orders    []domain.Order
	addresses map[string]domain.Addresses
	linked    map[string]string // guest session id -> email
	nextOrder int
}

// New starts a fake remote and closes it when t ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		forced:    map[string]int{},
		hits:      map[string]int{},
		accounts:  map[string]*account{},
		access:    map[string]string{},
		refresh:   map[string]string{},
		carts:     map[string]*domain.Cart{},
		wishlists: map[string]domain.Wishlist{},
		addresses: map[string]domain.Addresses{},
		linked:    map[string]string{},
		nextOrder: 1000,
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// ---------------------------------------------------------------------------
// Controls

// SetDown makes every route answer 503 while down is true.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// Force makes the route (e.g. "POST /wishlist") answer status. Zero clears.
func (s *Server) Force(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forced, route)
		return
	}
	s.forced[route] = status
}

// Hits returns how often route was requested, including refused requests.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// ExpireAccessTokens invalidates every access token; refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.access = map[string]string{}
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refresh = map[string]string{}
	s.mu.Unlock()
}

// AddUser registers an account.
func (s *Server) AddUser(email, password, name string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: uuid.NewString(), Email: email, Name: name, Role: "customer"}
	s.accounts[strings.ToLower(email)] = &account{user: u, password: password}
	return u
}

// Tokens issues a valid pair for user.
func (s *Server) Tokens(u domain.User) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ar := s.issueLocked(u)
	return ar.AccessToken, ar.RefreshToken
}

// AddProducts stores products in the catalog.
func (s *Server) AddProducts(ps ...domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, ps...)
}

// Orders returns a copy of every stored order.
func (s *Server) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Order(nil), s.orders...)
}

// Linked returns the email a guest session was linked to.
func (s *Server) Linked(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked[sessionID]
}

// ---------------------------------------------------------------------------
// Routing

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.control)

	r.POST("/auth/login", s.login)
	r.POST("/auth/register", s.register)
	r.POST("/auth/refresh", s.refreshTokens)
	r.POST("/auth/change-password", s.requireUser, s.changePassword)

	r.GET("/cart", s.identify, s.getCart)
	r.GET("/cart/count", s.identify, s.cartCount)
	r.POST("/cart/items", s.identify, s.addCartItem)
	r.PUT("/cart/items/:id", s.identify, s.updateCartItem)
	r.DELETE("/cart/items/:id", s.identify, s.removeCartItem)

	r.GET("/wishlist", s.identify, s.getWishlist)
	r.GET("/wishlist/count", s.identify, s.wishlistCount)
	r.GET("/wishlist/product/:id", s.identify, s.wishlistMembership)
	r.POST("/wishlist", s.identify, s.addWishlist)
	r.DELETE("/wishlist/:id", s.identify, s.removeWishlist)

	r.GET("/products", s.listProducts)
	r.GET("/products/:id", s.getProduct)
	r.GET("/products/slug/:slug", s.getProductBySlug)
	r.POST("/products", s.requireUser, s.createProduct)
	r.PUT("/products/:id", s.requireUser, s.updateProduct)
	r.DELETE("/products/:id", s.requireUser, s.deleteProduct)
	r.GET("/categories", s.categories)

	r.GET("/orders", s.requireUser, s.listOrders)
	r.POST("/orders", s.requireUser, s.placeOrder)
	r.POST("/orders/guest", s.placeGuestOrder)
	r.POST("/orders/link-guest-orders", s.requireUser, s.linkGuestOrders)
	r.GET("/orders/guest/session/:id", s.guestOrders)
	r.GET("/orders/:id", s.identify, s.getOrder)
	r.PUT("/orders/:id/cancel", s.identify, s.cancelOrder)

	r.GET("/user/addresses", s.requireUser, s.listAddresses)
	r.POST("/user/addresses", s.requireUser, s.addAddress)
	r.PUT("/user/addresses/:id", s.requireUser, s.updateAddress)
	r.DELETE("/user/addresses/:id", s.requireUser, s.deleteAddress)
	r.PUT("/user/addresses/:id/default", s.requireUser, s.setDefaultAddress)
	r.GET("/user/pincode/:code/check", s.requireUser, s.checkPincode)
	return r
}

// control counts the request and applies outage and forced statuses.
func (s *Server) control(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.hits[route]++
	down := s.down
	forced := s.forced[route]
	s.mu.Unlock()

	switch {
	case down:
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "service unavailable"})
	case forced != 0:
		c.AbortWithStatusJSON(forced, gin.H{"message": http.StatusText(forced)})
	default:
		c.Next()
	}
}

// identify resolves the owner: the bearer's user, or anonymous without one.
// An unknown bearer is refused.
func (s *Server) identify(c *gin.Context) {
	if s.resolveOwner(c) {
		c.Next()
	}
}

func (s *Server) requireUser(c *gin.Context) {
	if !s.resolveOwner(c) {
		return
	}
	if c.GetString("owner") == anonymous {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
		return
	}
	c.Next()
}

// resolveOwner stores the caller under "owner"; false means the request was aborted.
func (s *Server) resolveOwner(c *gin.Context) bool {
	h := c.GetHeader("Authorization")
	if h == "" {
		c.Set("owner", anonymous)
		return true
	}
	s.mu.Lock()
	uid, ok := s.access[strings.TrimPrefix(h, "Bearer ")]
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return false
	}
	c.Set("owner", uid)
	return true
}

func ok(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

// ---------------------------------------------------------------------------
// Auth

func (s *Server) issueLocked(u domain.User) domain.AuthResult {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"role":  u.Role,
		"jti":   uuid.NewString(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	refresh := uuid.NewString()
	s.access[access] = u.ID
	s.refresh[refresh] = u.ID
	return domain.AuthResult{AccessToken: access, RefreshToken: refresh, User: &u}
}

func (s *Server) userByID(id string) (*account, bool) {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (s *Server) login(c *gin.Context) {
	var in struct{ Email, Password string }
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.accounts[strings.ToLower(in.Email)]
	if !found || a.password != in.Password {
		fail(c, http.StatusUnauthorized, "invalid email or password")
		return
	}
	ok(c, http.StatusOK, s.issueLocked(a.user))
}

func (s *Server) register(c *gin.Context) {
	var in struct{ Name, Email, Password string }
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[strings.ToLower(in.Email)]; taken {
		fail(c, http.StatusConflict, "email already registered")
		return
	}
	u := domain.User{ID: uuid.NewString(), Email: in.Email, Name: in.Name, Role: "customer"}
	s.accounts[strings.ToLower(in.Email)] = &account{user: u, password: in.Password}
	ok(c, http.StatusCreated, s.issueLocked(u))
}

func (s *Server) refreshTokens(c *gin.Context) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, found := s.refresh[in.RefreshToken]
	if !found {
		fail(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	delete(s.refresh, in.RefreshToken)
	a, _ := s.userByID(uid)
	ok(c, http.StatusOK, s.issueLocked(a.user))
}

func (s *Server) changePassword(c *gin.Context) {
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.userByID(c.GetString("owner"))
	if a == nil || a.password != in.CurrentPassword {
		fail(c, http.StatusBadRequest, "current password is wrong")
		return
	}
	a.password = in.NewPassword
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Cart

func (s *Server) cartLocked(owner string) *domain.Cart {
	cart, found := s.carts[owner]
	if !found {
		cart = &domain.Cart{Items: []domain.CartItem{}}
		s.carts[owner] = cart
	}
	return cart
}

func (s *Server) getCart(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, s.cartLocked(c.GetString("owner")))
}

func (s *Server) cartCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, domain.Count{Count: s.cartLocked(c.GetString("owner")).Count})
}

func (s *Server) addCartItem(c *gin.Context) {
	var in struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
		Size      string `json:"size"`
		Color     string `json:"color"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity < 1 {
		fail(c, http.StatusBadRequest, "invalid item")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.productLocked(func(p domain.Product) bool { return p.ID == in.ProductID })
	if !found {
		fail(c, http.StatusNotFound, "product not found")
		return
	}
	cart := s.cartLocked(c.GetString("owner"))
	merged := false
	for i, it := range cart.Items {
		if it.SameLine(in.ProductID, in.Size, in.Color) {
			cart.Items[i].Quantity = domain.ClampQuantity(it.Quantity + in.Quantity)
			merged = true
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ID: uuid.NewString(), ProductID: p.ID, Name: p.Name, UnitPrice: p.Price,
			Quantity: domain.ClampQuantity(in.Quantity), Size: in.Size, Color: in.Color,
		})
	}
	cart.Normalize()
	ok(c, http.StatusOK, cart)
}

func (s *Server) updateCartItem(c *gin.Context) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cartLocked(c.GetString("owner"))
	i := cart.Find(c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "item not found")
		return
	}
	cart.Items[i].Quantity = in.Quantity
	cart.Normalize()
	ok(c, http.StatusOK, cart)
}

func (s *Server) removeCartItem(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.cartLocked(c.GetString("owner"))
	i := cart.Find(c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "item not found")
		return
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	cart.Normalize()
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Wishlist

func (s *Server) getWishlist(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := append(domain.Wishlist{}, s.wishlists[c.GetString("owner")]...)
	ok(c, http.StatusOK, w)
}

func (s *Server) wishlistCount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, domain.Count{Count: len(s.wishlists[c.GetString("owner")])})
}

func (s *Server) wishlistMembership(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := c.GetString("owner")
	ok(c, http.StatusOK, domain.Membership{IsWishlisted: s.wishlists[owner].Contains(owner, c.Param("id"))})
}

func (s *Server) addWishlist(c *gin.Context) {
	var in struct {
		ProductID string `json:"productId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.ProductID == "" {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := c.GetString("owner")
	if s.wishlists[owner].Contains(owner, in.ProductID) {
		fail(c, http.StatusConflict, "already in wishlist")
		return
	}
	e := domain.WishlistEntry{ID: uuid.NewString(), ProductID: in.ProductID, UserID: owner, CreatedAt: time.Now().UTC()}
	s.wishlists[owner] = append(s.wishlists[owner], e)
	ok(c, http.StatusCreated, e)
}

func (s *Server) removeWishlist(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := c.GetString("owner")
	if !s.wishlists[owner].Contains(owner, c.Param("id")) {
		fail(c, http.StatusNotFound, "not in wishlist")
		return
	}
	s.wishlists[owner] = s.wishlists[owner].Without(owner, c.Param("id"))
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Catalog

func (s *Server) productLocked(match func(domain.Product) bool) (domain.Product, bool) {
	for _, p := range s.products {
		if match(p) {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Server) listProducts(c *gin.Context) {
	f := domain.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		InStock:  c.Query("inStock") == "true",
		Sort:     c.Query("sort"),
	}
	f.Page, _ = strconv.Atoi(c.Query("page"))
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.MinPrice, _ = strconv.ParseFloat(c.Query("minPrice"), 64)
	f.MaxPrice, _ = strconv.ParseFloat(c.Query("maxPrice"), 64)
	f = f.Normalized()

	s.mu.Lock()
	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.IsActive || (f.Category != "" && !strings.EqualFold(p.Category, f.Category)) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	page := domain.ProductPage{Items: []domain.Product{}, Total: len(matched), Page: f.Page, Limit: f.Limit}
	if start := (f.Page - 1) * f.Limit; start < len(matched) {
		page.Items = append(page.Items, matched[start:min(start+f.Limit, len(matched))]...)
	}
	ok(c, http.StatusOK, page)
}

func (s *Server) getProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.productLocked(func(p domain.Product) bool { return p.ID == c.Param("id") })
	if !found {
		fail(c, http.StatusNotFound, "product not found")
		return
	}
	ok(c, http.StatusOK, p)
}

func (s *Server) getProductBySlug(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.productLocked(func(p domain.Product) bool { return p.Slug == c.Param("slug") })
	if !found {
		fail(c, http.StatusNotFound, "product not found")
		return
	}
	ok(c, http.StatusOK, p)
}

func (s *Server) createProduct(c *gin.Context) {
	var p domain.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	s.products = append(s.products, p)
	ok(c, http.StatusCreated, p)
}

func (s *Server) updateProduct(c *gin.Context) {
	var p domain.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == c.Param("id") {
			p.ID = s.products[i].ID
			s.products[i] = p
			ok(c, http.StatusOK, p)
			return
		}
	}
	fail(c, http.StatusNotFound, "product not found")
}

func (s *Server) deleteProduct(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID == c.Param("id") {
			s.products = append(s.products[:i], s.products[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	fail(c, http.StatusNotFound, "product not found")
}

func (s *Server) categories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	out := domain.Categories{}
	for _, p := range s.products {
		slug := strings.ToLower(p.Category)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, domain.Category{ID: slug, Name: p.Category, Slug: slug})
	}
	ok(c, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Orders

func (s *Server) emailOf(uid string) string {
	if a, found := s.userByID(uid); found {
		return a.user.Email
	}
	return ""
}

func (s *Server) newOrderLocked(in domain.PlaceOrder) domain.Order {
	s.nextOrder++
	var total float64
	for _, it := range in.Items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	addr := in.ShippingAddress
	return domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     fmt.Sprintf("ORD-%d", s.nextOrder),
		Status:          domain.OrderPending,
		Items:           in.Items,
		Total:           domain.RoundCents(total),
		CreatedAt:       time.Now().UTC(),
		Email:           in.Email,
		ShippingAddress: &addr,
	}
}

func (s *Server) placeOrder(c *gin.Context) {
	var in domain.PlaceOrder
	if err := c.ShouldBindJSON(&in); err != nil || len(in.Items) == 0 {
		fail(c, http.StatusBadRequest, "invalid order")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := c.GetString("owner")
	o := s.newOrderLocked(in)
	o.Email = s.emailOf(uid)
	s.orders = append(s.orders, o)
	delete(s.carts, uid)
	ok(c, http.StatusCreated, o)
}

func (s *Server) placeGuestOrder(c *gin.Context) {
	var in domain.PlaceOrder
	if err := c.ShouldBindJSON(&in); err != nil || len(in.Items) == 0 || in.SessionID == "" {
		fail(c, http.StatusBadRequest, "invalid order")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.newOrderLocked(in)
	o.GuestSessionID = in.SessionID
	s.orders = append(s.orders, o)
	delete(s.carts, anonymous)
	ok(c, http.StatusCreated, o)
}

func (s *Server) linkGuestOrders(c *gin.Context) {
	var in struct {
		SessionID string `json:"sessionId"`
		Email     string `json:"email"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.SessionID == "" {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.orders {
		if s.orders[i].GuestSessionID == in.SessionID {
			s.orders[i].GuestSessionID = ""
			s.orders[i].Email = in.Email
			n++
		}
	}
	s.linked[in.SessionID] = in.Email
	ok(c, http.StatusOK, domain.LinkResult{LinkedCount: n})
}

func (s *Server) listOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := s.emailOf(c.GetString("owner"))
	out := domain.Orders{}
	for _, o := range s.orders {
		if o.GuestSessionID == "" && strings.EqualFold(o.Email, email) {
			out = append(out, o)
		}
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) guestOrders(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.Orders{}
	for _, o := range s.orders {
		if o.GuestSessionID == c.Param("id") {
			out = append(out, o)
		}
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) orderIndexLocked(id string) int {
	return domain.Orders(s.orders).Find(id)
}

func (s *Server) getOrder(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.orderIndexLocked(c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "order not found")
		return
	}
	ok(c, http.StatusOK, s.orders[i])
}

func (s *Server) cancelOrder(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.orderIndexLocked(c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "order not found")
		return
	}
	if !s.orders[i].Status.Cancellable() {
		fail(c, http.StatusBadRequest, "order can no longer be cancelled")
		return
	}
	s.orders[i].Status = domain.OrderCancelled
	ok(c, http.StatusOK, s.orders[i])
}

// ---------------------------------------------------------------------------
// Addresses

func (s *Server) listAddresses(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(c, http.StatusOK, append(domain.Addresses{}, s.addresses[c.GetString("owner")]...))
}

func (s *Server) addAddress(c *gin.Context) {
	var a domain.Address
	if err := c.ShouldBindJSON(&a); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := c.GetString("owner")
	a.ID = uuid.NewString()
	a.IsDefault = len(s.addresses[uid]) == 0
	s.addresses[uid] = append(s.addresses[uid], a)
	ok(c, http.StatusCreated, a)
}

func (s *Server) addressIndexLocked(uid, id string) int {
	for i, a := range s.addresses[uid] {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) updateAddress(c *gin.Context) {
	var a domain.Address
	if err := c.ShouldBindJSON(&a); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := c.GetString("owner")
	i := s.addressIndexLocked(uid, c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "address not found")
		return
	}
	a.ID = c.Param("id")
	a.IsDefault = s.addresses[uid][i].IsDefault
	s.addresses[uid][i] = a
	ok(c, http.StatusOK, a)
}

func (s *Server) deleteAddress(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := c.GetString("owner")
	i := s.addressIndexLocked(uid, c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "address not found")
		return
	}
	s.addresses[uid] = append(s.addresses[uid][:i], s.addresses[uid][i+1:]...)
	c.Status(http.StatusNoContent)
}

func (s *Server) setDefaultAddress(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := c.GetString("owner")
	i := s.addressIndexLocked(uid, c.Param("id"))
	if i < 0 {
		fail(c, http.StatusNotFound, "address not found")
		return
	}
	for j := range s.addresses[uid] {
		s.addresses[uid][j].IsDefault = j == i
	}
	ok(c, http.StatusOK, s.addresses[uid][i])
}

// checkPincode serves codes starting with 1 to 5 in a number of days equal
// to the first digit.
func (s *Server) checkPincode(c *gin.Context) {
	code := c.Param("code")
	out := domain.PincodeCheck{Pincode: code}
	if code != "" && code[0] >= '1' && code[0] <= '5' {
		out.Serviceable = true
		out.EstimatedDays = int(code[0] - '0')
	}
	ok(c, http.StatusOK, out)
}
