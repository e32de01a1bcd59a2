//go:build darwin || windows

package ble

import "tinygo.org/x/bluetooth"

func writeWithResponse(_ *tinygoCharacteristic, char *bluetooth.DeviceCharacteristic, data []byte) error {
	_, err := char.Write(data)
	return err
}

// CoreBluetooth and WinRT device names are not reachable through tinygo.
func platformName(string) string { return "" }
