package wallpad

import "encoding/binary"

// AirQuality reads the home air quality sensor. Singleton, read-only: the
// sensor broadcasts periodically and answers Get, but accepts no commands.
//
// Vector layout: [0] PM10, [1] PM2.5, [2:4] CO2 big-endian, [4:6] VOC
// big-endian, [6] temperature, [7] humidity.
type AirQuality struct {
	controller
}

// NewAirQuality builds the air quality sensor controller.
func NewAirQuality(bus Bus, logger Logger) *AirQuality {
	return &AirQuality{controller: newController(bus, SingletonAddr(ClassAirQuality), logger)}
}

// PM10 returns coarse particulate matter in µg/m³.
func (a *AirQuality) PM10() int {
	return int(a.snapshot()[0])
}

// PM25 returns fine particulate matter in µg/m³.
func (a *AirQuality) PM25() int {
	return int(a.snapshot()[1])
}

// CO2 returns carbon dioxide concentration in ppm.
func (a *AirQuality) CO2() int {
	s := a.snapshot()
	return int(binary.BigEndian.Uint16(s[2:4]))
}

// VOC returns volatile organic compound concentration in µg/m³.
func (a *AirQuality) VOC() int {
	s := a.snapshot()
	return int(binary.BigEndian.Uint16(s[4:6]))
}

// Temperature returns the sensor temperature in degrees Celsius.
func (a *AirQuality) Temperature() int {
	return int(a.snapshot()[6])
}

// Humidity returns relative humidity in percent.
func (a *AirQuality) Humidity() int {
	return int(a.snapshot()[7])
}

func (a *AirQuality) handleFrame(f Frame) {
	a.setState(f.Value)
	a.logger.Debug("air quality updated",
		"pm10", a.PM10(),
		"pm25", a.PM25(),
		"co2", a.CO2(),
		"voc", a.VOC(),
		"temperature", a.Temperature(),
		"humidity", a.Humidity())
	a.notify()
}
