package storage_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"photocal/internal/models"
	"photocal/internal/storage"
	"photocal/internal/storage/memory"
	"photocal/pkg/logger"
)

type failingBackend struct{}

var errBroken = errors.New("disk on fire")

func (failingBackend) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (failingBackend) Set(context.Context, string, []byte) error   { return errBroken }
func (failingBackend) Delete(context.Context, string) error        { return errBroken }
func (failingBackend) Close() error                                { return nil }

func newAdapter(t *testing.T) (*storage.Adapter, *memory.Store) {
	t.Helper()
	backend := memory.New()
	return storage.NewAdapter(backend, logger.NewNop()), backend
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, _ := newAdapter(t)

	profile := models.UserProfile{
		Gender: models.GenderMale,
		Age:    30,
		Height: 180,
		Weight: 80,
		Goal:   models.GoalMaintenance,
	}
	if !a.Save(ctx, "nutrition_user_profile", profile) {
		t.Fatal("Save(profile) = false")
	}
	if got := storage.Load(ctx, a, "nutrition_user_profile", models.UserProfile{}); got != profile {
		t.Errorf("Load(profile) = %+v, want %+v", got, profile)
	}

	entries := []models.FoodEntry{
		{
			ID:          1717236000000,
			Timestamp:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			MealType:    models.MealBreakfast,
			Name:        "Овсянка",
			Description: "с ягодами",
			Nutrients:   &models.Nutrients{Calories: 320, Protein: 11, Fat: 6.5, Carbs: 54},
		},
		{
			ID:        1717250400000,
			Timestamp: time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
			MealType:  models.MealLunch,
			Name:      "Суп",
			Photo:     "data:image/jpeg;base64,AAAA",
		},
	}
	if !a.Save(ctx, "nutrition_food_diary_2024-06-01", entries) {
		t.Fatal("Save(entries) = false")
	}
	got := storage.Load[[]models.FoodEntry](ctx, a, "nutrition_food_diary_2024-06-01", nil)
	if !reflect.DeepEqual(got, entries) {
		t.Errorf("Load(entries) = %+v, want %+v", got, entries)
	}
}

func TestAdapterLoadFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	def := models.UserProfile{Goal: models.GoalMaintenance}

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"v":1,"data":`},
		{"bare value without envelope", `{"gender":"male","age":30,"height":180,"weight":80,"goal":"maintenance"}`},
		{"other schema version", `{"v":2,"data":{"gender":"male","age":30,"height":180,"weight":80,"goal":"maintenance"}}`},
		{"unknown field", `{"v":1,"data":{"gender":"male","age":30,"height":180,"weight":80,"goal":"maintenance","bmi":24}}`},
		{"fails validation", `{"v":1,"data":{"gender":"male","age":5,"height":180,"weight":80,"goal":"maintenance"}}`},
		{"missing data", `{"v":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, backend := newAdapter(t)
			if err := backend.Set(ctx, "nutrition_user_profile", []byte(tt.raw)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if got := storage.Load(ctx, a, "nutrition_user_profile", def); got != def {
				t.Errorf("Load() = %+v, want default %+v", got, def)
			}
		})
	}

	t.Run("absent key", func(t *testing.T) {
		a, _ := newAdapter(t)
		if got := storage.Load(ctx, a, "nutrition_user_profile", def); got != def {
			t.Errorf("Load() = %+v, want default", got)
		}
	})
}

func TestAdapterNilPointerRecord(t *testing.T) {
	ctx := context.Background()
	a, backend := newAdapter(t)
	if err := backend.Set(ctx, "nutrition_user_profile", []byte(`{"v":1,"data":null}`)); err != nil {
		t.Fatal(err)
	}
	if got := storage.Load[*models.UserProfile](ctx, a, "nutrition_user_profile", nil); got != nil {
		t.Errorf("Load() = %+v, want nil", got)
	}
}

func TestAdapterScoped(t *testing.T) {
	ctx := context.Background()
	a, backend := newAdapter(t)

	alice := a.Scoped("tg:1")
	bob := a.Scoped("tg:2")

	if !alice.Save(ctx, "nutrition_user_profile", map[string]int{"age": 30}) {
		t.Fatal("Save() = false")
	}
	if _, err := backend.Get(ctx, "tg:1:nutrition_user_profile"); err != nil {
		t.Errorf("scoped key not written: %v", err)
	}
	if got := storage.Load[map[string]int](ctx, bob, "nutrition_user_profile", nil); got != nil {
		t.Errorf("other owner sees %v", got)
	}

	if !alice.Remove(ctx, "nutrition_user_profile") {
		t.Fatal("Remove() = false")
	}
	if got := storage.Load(ctx, alice, "nutrition_user_profile", map[string]int{}); len(got) != 0 {
		t.Errorf("Load() after Remove = %v", got)
	}
}

func TestAdapterBackendFailures(t *testing.T) {
	ctx := context.Background()
	a := storage.NewAdapter(failingBackend{}, logger.NewNop())

	if a.Save(ctx, "k", 1) {
		t.Error("Save() = true on failing backend")
	}
	if a.Remove(ctx, "k") {
		t.Error("Remove() = true on failing backend")
	}
	if got := storage.Load(ctx, a, "k", 42); got != 42 {
		t.Errorf("Load() = %d, want default 42", got)
	}
}

func TestAdapterUnserializableValue(t *testing.T) {
	a, _ := newAdapter(t)
	if a.Save(context.Background(), "k", make(chan int)) {
		t.Error("Save(chan) = true")
	}
}

func TestAdapterGetSeparatesReadErrorsFromAbsence(t *testing.T) {
	ctx := context.Background()

	t.Run("backend error", func(t *testing.T) {
		a := storage.NewAdapter(failingBackend{}, logger.NewNop())
		_, ok, err := storage.Get[[]int](ctx, a, "k")
		if !errors.Is(err, errBroken) {
			t.Fatalf("Get() error = %v, want %v", err, errBroken)
		}
		if ok {
			t.Error("Get() ok = true on failing backend")
		}
	})

	t.Run("absent key", func(t *testing.T) {
		a, _ := newAdapter(t)
		got, ok, err := storage.Get[[]int](ctx, a, "k")
		if err != nil || ok || got != nil {
			t.Errorf("Get() = %v, %v, %v; want nil, false, nil", got, ok, err)
		}
	})

	t.Run("undecodable record", func(t *testing.T) {
		a, backend := newAdapter(t)
		if err := backend.Set(ctx, "k", []byte(`{"v":2,"data":[1]}`)); err != nil {
			t.Fatal(err)
		}
		_, ok, err := storage.Get[[]int](ctx, a, "k")
		if err != nil || ok {
			t.Errorf("Get() ok = %v, error = %v; want false, nil", ok, err)
		}
	})

	t.Run("stored record", func(t *testing.T) {
		a, _ := newAdapter(t)
		if !a.Save(ctx, "k", []int{1, 2}) {
			t.Fatal("Save() = false")
		}
		got, ok, err := storage.Get[[]int](ctx, a, "k")
		if err != nil || !ok || !reflect.DeepEqual(got, []int{1, 2}) {
			t.Errorf("Get() = %v, %v, %v; want [1 2], true, nil", got, ok, err)
		}
	})
}
