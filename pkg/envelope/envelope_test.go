package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/models"
)

func TestParse_AppInit(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u1","enterprise":{"id":"E1","customId":"Acme"},"event_name":"app.init","userId":7}`))
	require.NoError(t, err)

	assert.Equal(t, "u1", ev.ID)
	assert.Equal(t, "E1", ev.EnterpriseID)
	assert.Equal(t, "Acme", ev.EnterpriseName)
	assert.Equal(t, KindAppInit, ev.Kind)
	assert.Equal(t, int64(7), ev.UserID)
	assert.Equal(t, models.Phone{}, ev.Phone)
	assert.Empty(t, ev.RouteURL)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestParse_Defaults(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u2","enterprise":{"id":"E1"},"event_name":"app.login"}`))
	require.NoError(t, err)

	assert.Equal(t, models.AnonymousUserID, ev.UserID)
	assert.Empty(t, ev.EnterpriseName)
	assert.Equal(t, models.Phone{}, ev.Phone)
}

func TestParse_PhoneDetails(t *testing.T) {
	ev, err := Parse([]byte(`{
		"uuid":"u3",
		"enterprise":{"id":"E1"},
		"event_name":"app.logout",
		"userId":"12",
		"phoneDetails":{"latitude":12.5,"longitude":-3.25,"deviceId":"d1","manufacturer":"acme","model":"x","os":"android"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(12), ev.UserID)
	assert.Equal(t, models.Phone{Latitude: 12.5, Longitude: -3.25, DeviceID: "d1", Manufacturer: "acme", Model: "x", OS: "android"}, ev.Phone)
}

func TestParse_ProductPageView(t *testing.T) {
	ev, err := Parse([]byte(`{
		"uuid":"u4",
		"enterprise":{"id":"E1"},
		"event_name":"productpage.view",
		"userId":7,
		"routeUrl":"/p/1",
		"productId":"P1",
		"productName":"Runner",
		"categories":["shoes","sale"],
		"tags":["red"],
		"price":"19.99"
	}`))
	require.NoError(t, err)

	assert.Equal(t, KindProductPageView, ev.Kind)
	assert.Equal(t, "P1", ev.ProductID)
	assert.Equal(t, "Runner", ev.ProductName)
	assert.Equal(t, "/p/1", ev.RouteURL)
	assert.Equal(t, []string{"shoes", "sale"}, ev.Categories)
	assert.Equal(t, []string{"red"}, ev.Tags)
	assert.Equal(t, int64(1999), ev.Price.Cents())
	assert.True(t, ev.HasPrice)
}

func TestParse_PriceAsNumber(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1","price":0.1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), ev.Price.Cents())
	assert.True(t, ev.HasPrice)
}

func TestParse_PriceAbsent(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1"}`))
	require.NoError(t, err)
	assert.False(t, ev.HasPrice)
	assert.Equal(t, int64(0), ev.Price.Cents())
}

func TestParse_PushToken(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u5","enterprise":{"id":"E1"},"event_name":"update.push_token","userId":3,"notificationType":"2","pushKey":"k","pushToken":"t"}`))
	require.NoError(t, err)

	assert.Equal(t, KindUpdatePushToken, ev.Kind)
	assert.Equal(t, 2, ev.PushType)
	assert.Equal(t, "k", ev.PushKey)
	assert.Equal(t, "t", ev.PushToken)
}

func TestParse_KindFieldsOnlyForKind(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"app.init","productId":"P1","categories":["x"],"pushToken":"t"}`))
	require.NoError(t, err)

	assert.Empty(t, ev.ProductID)
	assert.Nil(t, ev.Categories)
	assert.Empty(t, ev.PushToken)
}

func TestParse_UnknownKind(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"unknown.kind"}`))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
	assert.Equal(t, "unknown.kind", ev.Name)
}

func TestParse_UnknownKindIgnoresOtherKeys(t *testing.T) {
	payloads := []string{
		`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"unknown.kind","tags":"red"}`,
		`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"unknown.kind","userId":"abc","price":"cheap","phoneDetails":[1]}`,
		`{"uuid":"u","enterprise":{"id":"E1","customId":5},"event_name":"unknown.kind","categories":{"x":1},"notificationType":true}`,
	}

	for _, payload := range payloads {
		ev, err := Parse([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, KindUnknown, ev.Kind)
	}
}

func TestParse_UnusedKeysWithOddTypes(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"app.init","userId":3,"productId":5,"tags":"red","price":{"amount":1},"pushType":[1]}`))
	require.NoError(t, err)
	assert.Equal(t, KindAppInit, ev.Kind)
	assert.Equal(t, int64(3), ev.UserID)
	assert.Empty(t, ev.ProductID)
}

func TestParse_NumericIdentifiers(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":42},"event_name":"productpage.view","productId":42,"categories":["shoes",7],"tags":"red","userId":"7.0"}`))
	require.NoError(t, err)

	assert.Equal(t, "42", ev.EnterpriseID)
	assert.Equal(t, "42", ev.ProductID)
	assert.Equal(t, []string{"shoes", "7"}, ev.Categories)
	assert.Equal(t, []string{"red"}, ev.Tags)
	assert.Equal(t, int64(7), ev.UserID)
	assert.False(t, ev.HasPrice)
}

func TestParse_PriceAtColumnLimit(t *testing.T) {
	ev, err := Parse([]byte(`{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1","price":"9999999999.99"}`))
	require.NoError(t, err)
	assert.Equal(t, models.MaxPrice, ev.Price)
}

func TestParse_MissingUUIDIsStable(t *testing.T) {
	payload := []byte(`{"enterprise":{"id":"E1"},"event_name":"app.init"}`)
	first, err := Parse(payload)
	require.NoError(t, err)
	second, err := Parse(payload)
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ``},
		{name: "not json", payload: `hello`},
		{name: "json array", payload: `[1,2]`},
		{name: "truncated", payload: `{"uuid":"u"`},
		{name: "missing enterprise", payload: `{"uuid":"u","event_name":"app.init"}`},
		{name: "missing enterprise id", payload: `{"uuid":"u","enterprise":{"customId":"x"},"event_name":"app.init"}`},
		{name: "missing event name", payload: `{"uuid":"u","enterprise":{"id":"E1"}}`},
		{name: "bad user id", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"app.init","userId":"abc"}`},
		{name: "bad price", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1","price":"cheap"}`},
		{name: "missing product id", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view"}`},
		{name: "missing route", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"page.view"}`},
		{name: "price above column range", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1","price":"99999999999.99"}`},
		{name: "price exponent overflow", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1","price":"1e20"}`},
		{name: "numeric price overflow", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":"P1","price":1e300}`},
		{name: "fractional user id", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"app.init","userId":7.9}`},
		{name: "huge user id", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"app.init","userId":1e30}`},
		{name: "fractional notification type", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"update.push_token","notificationType":"1.5"}`},
		{name: "tags object on page view", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"page.view","routeUrl":"/","tags":{"a":1}}`},
		{name: "product id object", payload: `{"uuid":"u","enterprise":{"id":"E1"},"event_name":"productpage.view","productId":{"id":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, apperrors.IsMalformed(err), "expected malformed envelope, got: %v", err)
		})
	}
}

func TestKind(t *testing.T) {
	for _, k := range Kinds() {
		assert.Equal(t, k, KindOf(k.String()))
	}
	assert.Equal(t, "app_init", KindAppInit.HookName())
	assert.True(t, KindPageView.IsAPIEvent())
	assert.False(t, KindUpdatePushToken.IsAPIEvent())
	assert.False(t, KindUnknown.IsAPIEvent())
	assert.True(t, KindProductPageView.HasTaxonomy())
	assert.True(t, KindAppLogout.IsLifecycle())
}
