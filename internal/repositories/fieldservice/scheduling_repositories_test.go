package fieldservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/customer-api/internal/repositories"
)

func TestSpotRepositorySearchDateRange(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /spot/search", func(w http.ResponseWriter, r *http.Request) {
		var filter struct {
			Operator string   `json:"operator"`
			Value    []string `json:"value"`
		}
		assert.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("date")), &filter))
		assert.Equal(t, "BETWEEN", filter.Operator)
		assert.Equal(t, []string{"2025-05-05", "2025-05-09"}, filter.Value)
		assert.Equal(t, "1", r.URL.Query().Get("open"))
		assert.Empty(t, r.URL.Query().Get("spotIDs"))
		_, _ = w.Write([]byte(`{"success":true,"resolvedObjects":[
			{"spotID":"1","routeID":"4","date":"2025-05-05","start":"08:00:00","end":"08:30:00","open":"1","reserved":"0","appointmentIDs":""},
			{"spotID":"2","routeID":"4","date":"2025-05-05","start":"09:00:00","end":"09:30:00","open":"1","reserved":"0","appointmentIDs":"17"},
			{"spotID":"3","routeID":"4","date":"2025-05-06","start":"13:00:00","end":"13:30:00","open":"1","reserved":"1"}]}`))
	})
	repo, err := NewSpotRepository(client)
	require.NoError(t, err)

	spots, err := repo.Office(1).Search(context.Background(), repositories.SearchSpotsDTO{
		DateStart:     time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		DateEnd:       time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
		AvailableOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, 1, spots[0].ID)
	assert.Equal(t, time.Date(2025, 5, 5, 8, 0, 0, 0, time.UTC), spots[0].Start)
}

func TestSpotRepositorySearchByIDsKeepsTakenSpots(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /spot/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "[2]", r.URL.Query().Get("spotIDs"))
		assert.Empty(t, r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"success":true,"resolvedObjects":[{"spotID":"2","date":"2025-05-05","start":"09:00:00","end":"09:30:00","open":"1","appointmentIDs":[17]}]}`))
	})
	repo, _ := NewSpotRepository(client)

	spots, err := repo.Office(1).Search(context.Background(), repositories.SearchSpotsDTO{SpotIDs: []int{2}})
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, []int{17}, spots[0].AppointmentIDs)
	assert.False(t, spots[0].Available())
	assert.Equal(t, 1, remote.count("GET /spot/search"))
}

func TestSpotRepositorySearchRequiresRange(t *testing.T) {
	remote, client := newFakeRemote(t)
	repo, _ := NewSpotRepository(client)

	_, err := repo.Office(1).Search(context.Background(), repositories.SearchSpotsDTO{
		DateStart: time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, repositories.ErrInvalidDTO)
	assert.Zero(t, remote.count("GET /spot/search"))
}

func TestSpotRepositoryFindTranslatesErrors(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handle("GET /spot/404", `{"success":false,"errorMessage":"Spot not found"}`)
	remote.handleFunc("GET /spot/500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	repo, _ := NewSpotRepository(client)

	_, err := repo.Office(1).Find(context.Background(), 404)
	assert.True(t, repositories.IsNotFound(err), "got %T %v", err, err)

	_, err = repo.Office(1).Find(context.Background(), 500)
	var internal *repositories.InternalServerError
	require.True(t, errors.As(err, &internal), "got %T %v", err, err)
	assert.Equal(t, "spot", internal.Entity)
}

func TestEmployeeRepositoryFindSchedulerByName(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /employee/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Customer", q.Get("fname"))
		assert.Equal(t, "Portal", q.Get("lname"))
		assert.Equal(t, "1", q.Get("active"))
		_, _ = w.Write([]byte(`{"success":true,"resolvedObjects":[{"employeeID":"19","officeID":"1","fname":"CUSTOMER","lname":"PORTAL","type":"Office Staff","active":"1"}]}`))
	})
	repo, err := NewEmployeeRepository(client)
	require.NoError(t, err)

	employee, err := repo.Office(1).FindSchedulerByName(context.Background(), " Customer ", "Portal")
	require.NoError(t, err)
	assert.Equal(t, 19, employee.ID)
	assert.Equal(t, "Customer Portal", employee.FullName())
	assert.True(t, employee.Active)
}

func TestEmployeeRepositoryFindSchedulerByNameMissing(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handle("GET /employee/search", `{"success":true,"resolvedObjects":[]}`)
	repo, _ := NewEmployeeRepository(client)

	_, err := repo.Office(1).FindSchedulerByName(context.Background(), "Customer", "Portal")
	var notFound *repositories.EntityNotFoundError
	require.True(t, errors.As(err, &notFound), "got %T %v", err, err)
	assert.Equal(t, "employee", notFound.Entity)
	assert.Equal(t, 1, remote.count("GET /employee/search"))
}

func TestServiceTypeRepositoryAll(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /serviceType/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "[1]", r.URL.Query().Get("officeIDs"))
		_, _ = w.Write([]byte(`{"success":true,"resolvedObjects":[
			{"typeID":"3","description":" Reservice ","reservice":"1","defaultLength":"20"},
			{"typeID":"4","description":"Quarterly","regularService":"1","frequency":"90","defaultCharge":"129.00"}]}`))
	})
	repo, err := NewServiceTypeRepository(client)
	require.NoError(t, err)

	_, err = repo.All(context.Background())
	require.ErrorIs(t, err, repositories.ErrOfficeNotScoped)

	types, err := repo.Office(1).All(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Reservice", types[0].Description)
	assert.Equal(t, 20*time.Minute, types[0].DefaultDuration)
	assert.True(t, types[1].Recurring)
	assert.Equal(t, 90, types[1].FrequencyDays)
	assert.True(t, types[1].DefaultCharge.Equal(decimal.RequireFromString("129")))
	assert.Equal(t, 1, remote.count("GET /serviceType/search"))
}

func TestServiceTypeRepositoryFindNotFound(t *testing.T) {
	_, client := newFakeRemote(t)
	repo, _ := NewServiceTypeRepository(client)

	_, err := repo.Office(1).Find(context.Background(), 99)
	assert.True(t, repositories.IsNotFound(err), "got %T %v", err, err)
}

func TestOfficeRepositoryAll(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /office/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("officeIDs"))
		_, _ = w.Write([]byte(`{"success":true,"resolvedObjects":[{"officeID":"1","officeName":" Austin ","region":"South","timeZone":"America/Chicago"},{"officeID":"2","officeName":"Denver","timeZone":""}]}`))
	})
	repo, err := NewOfficeRepository(client)
	require.NoError(t, err)

	offices, err := repo.All(context.Background())
	require.NoError(t, err)
	require.Len(t, offices, 2)
	assert.Equal(t, "Austin", offices[0].Name)
	assert.Equal(t, "America/Chicago", offices[0].TimeZone)
	assert.Equal(t, time.UTC, offices[1].Location())
	assert.Equal(t, 1, remote.count("GET /office/search"))
}

func TestOfficeRepositoryAllTranslatesServerError(t *testing.T) {
	remote, client := newFakeRemote(t)
	remote.handleFunc("GET /office/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	repo, _ := NewOfficeRepository(client)

	_, err := repo.All(context.Background())
	var internal *repositories.InternalServerError
	require.True(t, errors.As(err, &internal), "got %T %v", err, err)
	assert.Equal(t, "office", internal.Entity)
}
