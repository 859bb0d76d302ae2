package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/device"
	"github.com/amberpower/controller/pkg/version"
)

// Small CLI for poking the smart switch directly, useful when setting up
// a new device or debugging an installation.
func main() {
	backend := flag.String("backend", "shelly", "switch backend: shelly, modbus or simulated")
	address := flag.String("addr", "", "device address host[:port]")
	generation := flag.Int("generation", 2, "shelly device generation")
	switchID := flag.Int("switch-id", 0, "shelly switch id")
	meterID := flag.Int("meter-id", 0, "shelly meter id")
	coil := flag.Int("coil", 0, "modbus coil address")
	energyReg := flag.Int("energyreg", 0, "modbus energy input register")
	hasMeter := flag.Bool("meter", false, "read the energy meter")
	set := flag.String("set", "", "change the output: on or off")
	showVersion := flag.Bool("version", false, "print version info")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	cfg := &config.CliConfig{
		Device: config.Device{
			Backend:        *backend,
			Address:        *address,
			Generation:     *generation,
			SwitchID:       *switchID,
			MeterID:        *meterID,
			CoilAddress:    uint16(*coil),
			EnergyRegister: uint16(*energyReg),
			HasMeter:       *hasMeter,
			TimeoutSeconds: 10,
		},
	}

	sw, err := device.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	status, err := sw.Status()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("online: %t output: %t", status.Online, status.Output)
	if status.Energy != nil {
		fmt.Printf(" energy: %.1f Wh", *status.Energy)
	}
	fmt.Println()

	if *set != "" {
		didChange, newState, err := sw.SetOutput(*set == "on")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("changed: %t output now: %t\n", didChange, newState)
	}
}
