package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/ephemeris"
	"github.com/astrapersonal/astra-api/pkg/geoip"
	"github.com/astrapersonal/astra-api/pkg/logger"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"github.com/astrapersonal/astra-api/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCharts struct {
	calls []ephemeris.BirthData
	chart ephemeris.Chart
}

func (f *fakeCharts) NatalChart(_ context.Context, b ephemeris.BirthData) ephemeris.Chart {
	f.calls = append(f.calls, b)
	return f.chart
}

type fakeGeo struct {
	loc *geoip.Location
	err error
}

func (f *fakeGeo) Lookup(context.Context, string) (*geoip.Location, error) {
	return f.loc, f.err
}

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T, charts ChartProvider, geo GeoLocator) (*Service, *gorm.DB) {
	t.Helper()
	db := storetest.Open(t)
	return NewService(db, charts, geo, logger.Nop()), db
}

func TestEnsureAccount_CreatesProfileAndTrial(t *testing.T) {
	svc, db := newService(t, nil, nil)
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	acc := Account{UserID: "u-1", Email: "giulia@example.com", FirstName: "Giulia"}
	require.NoError(t, svc.EnsureAccount(ctx, acc, true))
	// Repeated registration leaves the rows as they are
	require.NoError(t, svc.EnsureAccount(ctx, Account{UserID: "u-1", Email: "other@example.com"}, true))

	p, err := svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "giulia@example.com", p.Email)
	assert.True(t, p.IsActive)

	sub, err := store.FindSubscription(ctx, db, "u-1")
	require.NoError(t, err)
	assert.Equal(t, store.SubscriptionTrial, sub.Status)
	assert.Equal(t, 0, sub.LunaMinutesBalance)
	require.NotNil(t, sub.TrialEnd)
	assert.True(t, sub.TrialEnd.Equal(fixed.Add(TrialPeriod)))

	var count int64
	db.Model(&store.Subscription{}).Where("user_id = ?", "u-1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(t, nil, nil)
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdate_OnlyProvidedFields(t *testing.T) {
	svc, db := newService(t, nil, nil)
	storetest.SeedProfile(t, db, "u-1", func(p *store.Profile) { p.LastName = "Rossi" })

	err := svc.Update(context.Background(), "u-1", models.ProfileUpdateRequest{
		FirstName:         ptr("Giulia Maria"),
		NotificationsPush: ptr(false),
	})
	require.NoError(t, err)

	p, err := svc.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Giulia Maria", p.FirstName)
	assert.Equal(t, "Rossi", p.LastName)
	assert.False(t, p.NotificationsPush)
}

func TestSaveBirthData_CompletesOnboarding(t *testing.T) {
	charts := &fakeCharts{chart: ephemeris.Chart{"planets": map[string]any{"sun": "Leo"}}}
	svc, db := newService(t, charts, nil)
	storetest.SeedProfile(t, db, "u-1")

	resp, err := svc.SaveBirthData(context.Background(), "u-1", models.BirthDataRequest{
		BirthDate:    ptr("1990-08-10"),
		BirthTime:    ptr("14:30"),
		BirthCity:    "Milano",
		BirthCountry: "IT",
	})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "Leone", resp.SunSign)

	p, err := svc.Get(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, p.OnboardingCompleted)
	assert.Equal(t, "Leone", p.SunSign)
	assert.Equal(t, "1990-08-10", *p.BirthDate)
	assert.JSONEq(t, `{"planets":{"sun":"Leo"}}`, string(p.NatalChart))

	require.Len(t, charts.calls, 1)
	assert.Equal(t, "14:30", charts.calls[0].Time)
}

func TestSaveBirthData_WithoutDate(t *testing.T) {
	charts := &fakeCharts{}
	svc, db := newService(t, charts, nil)
	storetest.SeedProfile(t, db, "u-1")

	resp, err := svc.SaveBirthData(context.Background(), "u-1", models.BirthDataRequest{
		BirthCity:    "Roma",
		BirthCountry: "IT",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.SunSign)
	assert.Empty(t, charts.calls)

	p, _ := svc.Get(context.Background(), "u-1")
	assert.False(t, p.OnboardingCompleted)
	assert.Equal(t, "Roma", p.BirthCity)
}

func TestSaveRegistrationGeo(t *testing.T) {
	lat := 45.46
	geo := &fakeGeo{loc: &geoip.Location{City: "Milano", Region: "Lombardy", CountryCode: "IT", Postal: "20121", Latitude: &lat, Org: "Fastweb"}}
	svc, db := newService(t, nil, geo)
	storetest.SeedProfile(t, db, "u-1")

	info, err := svc.SaveRegistrationGeo(context.Background(), "u-1", "93.44.1.2")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "IT", info.RegCountry)

	p, _ := svc.Get(context.Background(), "u-1")
	assert.Equal(t, "93.44.1.2", p.RegIP)
	assert.Equal(t, "Milano", p.RegCity)
	assert.Equal(t, "20121", p.RegPostalCode)
}

func TestSaveRegistrationGeo_LookupFailure(t *testing.T) {
	svc, db := newService(t, nil, &fakeGeo{err: errors.New("quota")})
	storetest.SeedProfile(t, db, "u-1")

	info, err := svc.SaveRegistrationGeo(context.Background(), "u-1", "1.2.3.4")
	require.NoError(t, err)
	assert.Nil(t, info)

	p, _ := svc.Get(context.Background(), "u-1")
	assert.Empty(t, p.RegIP)
}

func TestUpdateLifeSituation(t *testing.T) {
	svc, db := newService(t, nil, nil)
	storetest.SeedProfile(t, db, "u-1")

	err := svc.UpdateLifeSituation(context.Background(), "u-1", models.LifeSituationRequest{
		RelationshipStatus: ptr("single"),
		Goals:              []string{"cambiare lavoro"},
	})
	require.NoError(t, err)

	p, _ := svc.Get(context.Background(), "u-1")
	var ls LifeSituation
	require.NoError(t, json.Unmarshal(p.LifeSituation, &ls))
	assert.Equal(t, "single", *ls.RelationshipStatus)
	assert.Equal(t, []string{"cambiare lavoro"}, ls.Goals)
	assert.Equal(t, []string{}, ls.SensitiveTopics)
}

func TestPartners_Lifecycle(t *testing.T) {
	svc, db := newService(t, nil, nil)
	storetest.SeedProfile(t, db, "u-1")
	storetest.SeedProfile(t, db, "u-2")
	ctx := context.Background()

	p, err := svc.CreatePartner(ctx, "u-1", models.PartnerRequest{Name: "Marco", BirthDate: ptr("1988-03-25")})
	require.NoError(t, err)
	assert.Equal(t, "romantic", p.RelationshipType)
	assert.Equal(t, "Ariete", p.SunSign)
	assert.True(t, p.IsActive)

	require.NoError(t, svc.UpdatePartner(ctx, "u-1", p.ID, models.PartnerRequest{Name: "Marco B.", RelationshipType: "friend"}))

	// Another user cannot touch it
	err = svc.DeletePartner(ctx, "u-2", p.ID)
	assert.True(t, domain.IsNotFound(err))

	list, err := svc.ListPartners(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Marco B.", list[0].Name)
	assert.Equal(t, "friend", list[0].RelationshipType)

	require.NoError(t, svc.DeletePartner(ctx, "u-1", p.ID))

	list, err = svc.ListPartners(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	// Row is kept for history
	var stored store.PartnerProfile
	require.NoError(t, db.Where("id = ?", p.ID).Take(&stored).Error)
	assert.False(t, stored.IsActive)
}
