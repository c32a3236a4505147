package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
)

// BMXX80Sensor wraps a Bosch BMP180/BMP280/BME280 on I²C.
type BMXX80Sensor struct {
	name string
	dev  *bmxx80.Dev
}

func NewBMXX80Sensor(name string, bus i2c.Bus, addr uint16) (*BMXX80Sensor, error) {
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("%s init at 0x%02X: %w", name, addr, err)
	}
	return &BMXX80Sensor{name: name, dev: dev}, nil
}

func (s *BMXX80Sensor) Name() string { return s.name }

func (s *BMXX80Sensor) ReadPressureTemp() (PressureTemp, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return PressureTemp{}, fmt.Errorf("%s sense: %w", s.name, err)
	}
	return envToPressureTemp(e), nil
}

func (s *BMXX80Sensor) Close() error {
	return s.dev.Halt()
}

func envToPressureTemp(e physic.Env) PressureTemp {
	// 1 hPa = 100 Pa
	return PressureTemp{
		Temperature: e.Temperature.Celsius(),
		Pressure:    float64(e.Pressure) / float64(100*physic.Pascal),
	}
}
