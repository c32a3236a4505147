package sensor

import (
	"errors"
	"math/rand"
	"sync"
)

var ErrSimulatedFault = errors.New("simulated sensor fault")

// FakePressureTemp simulates a barometric sensor. Fixed, when set, is returned
// verbatim instead of a random sample.
type FakePressureTemp struct {
	SensorName string
	Fixed      *PressureTemp
	Fail       bool
	mu         sync.Mutex
}

func NewFakePressureTemp(name string) *FakePressureTemp {
	return &FakePressureTemp{SensorName: name}
}

func (f *FakePressureTemp) Name() string { return f.SensorName }

func (f *FakePressureTemp) ReadPressureTemp() (PressureTemp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return PressureTemp{}, ErrSimulatedFault
	}
	if f.Fixed != nil {
		return *f.Fixed, nil
	}
	return PressureTemp{
		Temperature: 18.0 + rand.Float64()*14.0,
		Pressure:    995.0 + rand.Float64()*30.0,
	}, nil
}

func (f *FakePressureTemp) Close() error { return nil }

type FakeHumidity struct {
	Fixed       *Humidity
	Fail        bool
	temperature float64
	humidity    float64
	mu          sync.Mutex
}

func NewFakeHumidity() *FakeHumidity {
	return &FakeHumidity{temperature: Unavailable, humidity: Unavailable}
}

func (f *FakeHumidity) Measure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return ErrSimulatedFault
	}
	if f.Fixed != nil {
		f.temperature, f.humidity = f.Fixed.Temperature, f.Fixed.Humidity
		return nil
	}
	// DHT11 reports whole units
	f.temperature = float64(18 + rand.Intn(14))
	f.humidity = float64(30 + rand.Intn(50))
	return nil
}

func (f *FakeHumidity) Temperature() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.temperature
}

func (f *FakeHumidity) Humidity() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.humidity
}

func (f *FakeHumidity) Close() error { return nil }

type FakeAnalog struct {
	Fixed *int
	Fail  bool
	mu    sync.Mutex
}

func NewFakeAnalog() *FakeAnalog { return &FakeAnalog{} }

func (f *FakeAnalog) ReadRaw() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail {
		return 0, ErrSimulatedFault
	}
	if f.Fixed != nil {
		return *f.Fixed, nil
	}
	// mostly clean air with the occasional spike
	return rand.Intn(ADCMax/4 + 1), nil
}

func (f *FakeAnalog) Close() error { return nil }
