package host

// supportedDevices содержит модели CPU портативных устройств, на которых проверена
// работа ryzenadj. Строки сравниваются целиком, как их отдает /proc/cpuinfo.
var supportedDevices = []string{
	"AMD Athlon Silver 3050e with Radeon Graphics",
	"AMD Ryzen 5 4500U with Radeon Graphics",
	"AMD Ryzen 5 5560U with Radeon Graphics",
	"AMD Ryzen 5 5600U with Radeon Graphics",
	"AMD Ryzen 7 4800U with Radeon Graphics",
	"AMD Ryzen 7 5700U with Radeon Graphics",
	"AMD Ryzen 7 5800U with Radeon Graphics",
	"AMD Ryzen 7 5825U with Radeon Graphics",
	"AMD Ryzen 7 6800U with Radeon Graphics",
	"AMD Ryzen 7 7840U w/ Radeon 780M Graphics",
}

// SupportedDevices возвращает копию встроенного списка.
func SupportedDevices() []string {
	return append([]string(nil), supportedDevices...)
}

// IsSupported проверяет модель по встроенному списку и дополнительным записям.
func IsSupported(model string, extra []string) bool {
	if model == "" {
		return false
	}
	for _, d := range supportedDevices {
		if d == model {
			return true
		}
	}
	for _, d := range extra {
		if d == model {
			return true
		}
	}
	return false
}
