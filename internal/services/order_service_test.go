package services_test

import (
	"bytes"
	"testing"

	"harvestlink/internal/events"
	"harvestlink/internal/metrics"
	"harvestlink/internal/models"
	"harvestlink/internal/ratelimit"
	"harvestlink/internal/repositories"
	"harvestlink/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, body []byte) error {
	args := m.Called(routingKey, body)
	return args.Error(0)
}

type marketplace struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
	carts    repositories.CartRepository

	orderService *services.OrderService
	cartService  *services.CartService
	metrics      *metrics.Metrics
	publisher    *MockPublisher

	farmerA, farmerB, customer, otherCustomer services.Actor
	tomato, basil, milk                       *models.Product
}

// newMarketplace wires the services over in-memory JSON repositories with two
// farmers, two customers and three products.
func newMarketplace(t *testing.T, opts services.OrderOptions) *marketplace {
	t.Helper()

	orders, err := repositories.NewJSONOrderRepository("")
	require.NoError(t, err)
	products, err := repositories.NewJSONProductRepository("")
	require.NoError(t, err)
	users, err := repositories.NewJSONUserRepository("")
	require.NoError(t, err)
	carts, err := repositories.NewJSONCartRepository("")
	require.NoError(t, err)

	mp := &marketplace{orders: orders, products: products, users: users, carts: carts}

	addUser := func(id, username string, role models.Role, location string) services.Actor {
		require.NoError(t, users.Create(&models.User{
			ID: id, Username: username, Email: username + "@example.com", Password: "x",
			Role: role, Name: username + " name", Phone: "555-0100", Location: location,
		}))
		return services.Actor{UserID: id, Username: username, Role: role}
	}
	mp.farmerA = addUser("farmer-a", "greenacres", models.RoleFarmer, "North Field")
	mp.farmerB = addUser("farmer-b", "dairyhill", models.RoleFarmer, "Valley")
	mp.customer = addUser("customer-1", "carol", models.RoleCustomer, "")
	mp.otherCustomer = addUser("customer-2", "dave", models.RoleCustomer, "")

	addProduct := func(farmer, name, unit string, price float64, qty int) *models.Product {
		p := &models.Product{FarmerID: farmer, Name: name, Category: "produce", Unit: unit, Price: price, Quantity: qty}
		require.NoError(t, products.Create(p))
		return p
	}
	mp.tomato = addProduct("farmer-a", "Tomato", "kg", 5, 10)
	mp.basil = addProduct("farmer-a", "Basil", "bunch", 1.5, 4)
	mp.milk = addProduct("farmer-b", "Milk", "l", 3, 6)

	if opts.PinHashCost == 0 {
		opts.PinHashCost = bcrypt.MinCost
	}
	mp.metrics = metrics.New()
	mp.publisher = new(MockPublisher)
	mp.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	mp.orderService = services.NewOrderService(orders, products, users, events.NewEmitter(mp.publisher), mp.metrics, opts)
	mp.cartService = services.NewCartService(carts, products, users, mp.orderService)
	return mp
}

// counterValue reads a counter from reg; label selects the child of a
// single-label vector and is ignored for plain counters.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" || (len(m.GetLabel()) == 1 && m.GetLabel()[0].GetValue() == label) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func (mp *marketplace) placeTomatoOrder(t *testing.T) *services.CreatedOrder {
	t.Helper()
	created, err := mp.orderService.CreateOrder(mp.customer, services.CreateOrderRequest{
		FarmerID:        mp.farmerA.UserID,
		Items:           []services.CreateOrderItem{{ProductID: mp.tomato.ID, Quantity: 2}},
		DeliveryAddress: "12 Orchard Lane",
	})
	require.NoError(t, err)
	return created
}

func TestOrderService_CreateOrder(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})

	created, err := mp.orderService.CreateOrder(mp.customer, services.CreateOrderRequest{
		FarmerID: mp.farmerA.UserID,
		Items: []services.CreateOrderItem{
			{ProductID: mp.tomato.ID, Quantity: 2},
			{ProductID: mp.basil.ID, Quantity: 1},
			{ProductID: mp.tomato.ID, Quantity: 1},
		},
		PickupInstructions: "  Barn door, after 4pm ",
		Notes:              "ripe ones please",
	})
	require.NoError(t, err)

	assert.Regexp(t, `^order_\d+$`, created.ID)
	assert.Equal(t, models.StatusPending, created.Status)
	assert.InDelta(t, 16.5, created.TotalAmount, 1e-9)
	assert.Equal(t, "carol name", created.CustomerName)
	assert.Equal(t, "carol@example.com", created.CustomerEmail)
	assert.Equal(t, "Barn door, after 4pm", created.PickupInstructions)
	assert.Empty(t, created.DeliveryPinHash)
	assert.Regexp(t, `^[A-HJ-NP-Z2-9]{6}$`, created.DeliveryPin)

	require.Len(t, created.Items, 2)
	assert.Equal(t, models.OrderItem{ProductID: mp.tomato.ID, ProductName: "Tomato", Category: "produce", Unit: "kg", Price: 5, Quantity: 3}, created.Items[0])

	tomato, err := mp.products.GetByID(mp.tomato.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, tomato.Quantity)

	stored, err := mp.orders.GetByID(created.ID)
	require.NoError(t, err)
	assert.True(t, stored.PinMatches(created.DeliveryPin))

	assert.Equal(t, 1.0, counterValue(t, mp.metrics.Registry(), "harvestlink_orders_created_total", ""))
	mp.publisher.AssertCalled(t, "Publish", events.OrderCreated, mock.Anything)
}

func TestOrderService_CreateOrderRejections(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	valid := services.CreateOrderRequest{
		FarmerID:        mp.farmerA.UserID,
		Items:           []services.CreateOrderItem{{ProductID: mp.tomato.ID, Quantity: 1}},
		DeliveryAddress: "12 Orchard Lane",
	}

	cases := map[string]struct {
		actor  services.Actor
		mutate func(r *services.CreateOrderRequest)
		err    error
	}{
		"farmer caller":      {mp.farmerA, func(r *services.CreateOrderRequest) {}, services.ErrForbidden},
		"no fulfillment":     {mp.customer, func(r *services.CreateOrderRequest) { r.DeliveryAddress = "  " }, services.ErrInvalidInput},
		"both fulfillments":  {mp.customer, func(r *services.CreateOrderRequest) { r.PickupInstructions = "gate" }, services.ErrInvalidInput},
		"no items":           {mp.customer, func(r *services.CreateOrderRequest) { r.Items = nil }, services.ErrInvalidInput},
		"unknown farmer":     {mp.customer, func(r *services.CreateOrderRequest) { r.FarmerID = "nobody" }, services.ErrInvalidInput},
		"customer as farmer": {mp.customer, func(r *services.CreateOrderRequest) { r.FarmerID = mp.otherCustomer.UserID }, services.ErrInvalidInput},
		"foreign product":    {mp.customer, func(r *services.CreateOrderRequest) { r.Items[0].ProductID = mp.milk.ID }, services.ErrInvalidInput},
		"unknown product":    {mp.customer, func(r *services.CreateOrderRequest) { r.Items[0].ProductID = "missing" }, services.ErrInvalidInput},
		"zero quantity":      {mp.customer, func(r *services.CreateOrderRequest) { r.Items[0].Quantity = 0 }, services.ErrInvalidInput},
		"insufficient stock": {mp.customer, func(r *services.CreateOrderRequest) { r.Items[0].Quantity = 11 }, services.ErrInvalidInput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			req.Items = append([]services.CreateOrderItem(nil), valid.Items...)
			tc.mutate(&req)
			_, err := mp.orderService.CreateOrder(tc.actor, req)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	all, err := mp.orders.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
	tomato, err := mp.products.GetByID(mp.tomato.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, tomato.Quantity)
}

func TestOrderService_ListAndGet(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	created := mp.placeTomatoOrder(t)

	mine, err := mp.orderService.ListForActor(mp.customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Empty(t, mine[0].DeliveryPinHash)

	received, err := mp.orderService.ListForActor(mp.farmerA)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	none, err := mp.orderService.ListForActor(mp.farmerB)
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := mp.orderService.GetForActor(mp.farmerA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Empty(t, got.DeliveryPinHash)

	_, err = mp.orderService.GetForActor(mp.otherCustomer, created.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = mp.orderService.GetForActor(mp.customer, "order_0")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	created := mp.placeTomatoOrder(t)

	_, err := mp.orderService.UpdateStatus(mp.customer, created.ID, models.StatusConfirmed)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = mp.orderService.UpdateStatus(mp.farmerA, created.ID, models.OrderStatus("shipped"))
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = mp.orderService.UpdateStatus(mp.farmerA, "order_0", models.StatusConfirmed)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = mp.orderService.UpdateStatus(mp.farmerB, created.ID, models.StatusConfirmed)
	assert.ErrorIs(t, err, services.ErrForbidden)

	updated, err := mp.orderService.UpdateStatus(mp.farmerA, created.ID, models.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, updated.Status)

	_, err = mp.orderService.UpdateStatus(mp.farmerA, created.ID, models.StatusConfirmed)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	stored, err := mp.orders.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPreparing, stored.Status)

	assert.Equal(t, 1.0, counterValue(t, mp.metrics.Registry(), "harvestlink_order_status_changes_total", "preparing"))
	mp.publisher.AssertCalled(t, "Publish", events.OrderStatusChanged, mock.Anything)
}

func TestOrderService_UpdateStatusLenient(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: false})
	created := mp.placeTomatoOrder(t)

	for _, s := range []models.OrderStatus{models.StatusDelivered, models.StatusPending, models.StatusCancelled, models.StatusReady} {
		updated, err := mp.orderService.UpdateStatus(mp.farmerA, created.ID, s)
		require.NoError(t, err)
		assert.Equal(t, s, updated.Status)
	}
}

func TestOrderService_VerifyDeliveryPin(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true, PinLimiter: ratelimit.NewKeyedLimiter(1, 3)})
	created := mp.placeTomatoOrder(t)

	valid, err := mp.orderService.VerifyDeliveryPin(mp.farmerA, created.ID, created.DeliveryPin)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = mp.orderService.VerifyDeliveryPin(mp.customer, created.ID, "ZZZZZZ")
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = mp.orderService.VerifyDeliveryPin(mp.otherCustomer, created.ID, created.DeliveryPin)
	assert.ErrorIs(t, err, services.ErrForbidden)

	valid, err = mp.orderService.VerifyDeliveryPin(mp.customer, created.ID, created.DeliveryPin)
	require.NoError(t, err)
	assert.True(t, valid)

	// burst of 3 is spent
	_, err = mp.orderService.VerifyDeliveryPin(mp.farmerA, created.ID, created.DeliveryPin)
	assert.ErrorIs(t, err, services.ErrTooManyAttempts)

	assert.Equal(t, 2.0, counterValue(t, mp.metrics.Registry(), "harvestlink_pin_verifications_total", metrics.PinValid))
	assert.Equal(t, 1.0, counterValue(t, mp.metrics.Registry(), "harvestlink_pin_verifications_total", metrics.PinInvalid))
	assert.Equal(t, 1.0, counterValue(t, mp.metrics.Registry(), "harvestlink_pin_verifications_total", metrics.PinThrottled))
}

func TestOrderService_ConfirmDelivery(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	created := mp.placeTomatoOrder(t)

	_, err := mp.orderService.ConfirmDelivery(mp.customer, created.ID, created.DeliveryPin)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = mp.orderService.ConfirmDelivery(mp.farmerB, created.ID, created.DeliveryPin)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = mp.orderService.ConfirmDelivery(mp.farmerA, created.ID, "WRONG1")
	assert.ErrorIs(t, err, services.ErrInvalidPin)
	stored, err := mp.orders.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)

	delivered, err := mp.orderService.ConfirmDelivery(mp.farmerA, created.ID, created.DeliveryPin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, delivered.Status)

	_, err = mp.orderService.ConfirmDelivery(mp.farmerA, created.ID, created.DeliveryPin)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestOrderService_LifecycleAndRating(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	created := mp.placeTomatoOrder(t)
	assert.InDelta(t, 10.0, created.TotalAmount, 1e-9)

	_, err := mp.orderService.Rate(mp.customer, created.ID, 5, "great")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	for _, s := range []models.OrderStatus{models.StatusConfirmed, models.StatusPreparing} {
		_, err := mp.orderService.UpdateStatus(mp.farmerA, created.ID, s)
		require.NoError(t, err)
	}
	_, err = mp.orderService.Rate(mp.customer, created.ID, 5, "great")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	stored, err := mp.orders.GetByID(created.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Rating)
	assert.Empty(t, stored.Review)

	_, err = mp.orderService.UpdateStatus(mp.farmerA, created.ID, models.StatusDelivered)
	require.NoError(t, err)

	_, err = mp.orderService.Rate(mp.farmerA, created.ID, 5, "great")
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = mp.orderService.Rate(mp.otherCustomer, created.ID, 5, "great")
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = mp.orderService.Rate(mp.customer, created.ID, 6, "great")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = mp.orderService.Rate(mp.customer, created.ID, 0, "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	rated, err := mp.orderService.Rate(mp.customer, created.ID, 5, "great")
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 5, *rated.Rating)
	assert.Equal(t, "great", rated.Review)
	assert.NotNil(t, rated.RatedAt)

	// a second rating replaces the first
	rated, err = mp.orderService.Rate(mp.customer, created.ID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, 3, *rated.Rating)

	stored, err = mp.orders.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *stored.Rating)
	assert.Equal(t, 2.0, counterValue(t, mp.metrics.Registry(), "harvestlink_order_ratings_total", ""))
}

func TestOrderService_Delete(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	pending := mp.placeTomatoOrder(t)
	confirmed := mp.placeTomatoOrder(t)
	_, err := mp.orderService.UpdateStatus(mp.farmerA, confirmed.ID, models.StatusConfirmed)
	require.NoError(t, err)

	assert.ErrorIs(t, mp.orderService.Delete(mp.farmerA, pending.ID), services.ErrForbidden)
	assert.ErrorIs(t, mp.orderService.Delete(mp.otherCustomer, pending.ID), services.ErrForbidden)
	assert.ErrorIs(t, mp.orderService.Delete(mp.customer, confirmed.ID), services.ErrInvalidTransition)
	assert.ErrorIs(t, mp.orderService.Delete(mp.customer, "order_0"), repositories.ErrNotFound)

	stock := func() int {
		p, err := mp.products.GetByID(mp.tomato.ID)
		require.NoError(t, err)
		return p.Quantity
	}
	require.Equal(t, 6, stock())

	require.NoError(t, mp.orderService.Delete(mp.customer, pending.ID))
	_, err = mp.orders.GetByID(pending.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Equal(t, 8, stock(), "deleting a pending order returns its stock")

	_, err = mp.orderService.UpdateStatus(mp.farmerA, confirmed.ID, models.StatusCancelled)
	require.NoError(t, err)
	require.NoError(t, mp.orderService.Delete(mp.customer, confirmed.ID))
	assert.Equal(t, 8, stock(), "cancelled orders keep their stock out")
}

func TestOrderService_Receipt(t *testing.T) {
	mp := newMarketplace(t, services.OrderOptions{StrictTransitions: true})
	created := mp.placeTomatoOrder(t)

	pdf, name, err := mp.orderService.Receipt(mp.farmerA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipt-"+created.ID+".pdf", name)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, _, err = mp.orderService.Receipt(mp.otherCustomer, created.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
}
