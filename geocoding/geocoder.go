// Package geocoding опциональный коллаборатор разрешения локаций:
// превращает название места в координаты. Любой сбой провайдера
// деградирует до "координат нет" — ядро разрешения никогда не блокируется
// и не падает из-за геокодирования.
package geocoding

// Point координаты точки
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Provider внешний сервис геокодирования
type Provider interface {
	// Geocode возвращает координаты названия; found=false, если сервис
	// не знает такого места. Ошибка — только для сбоев самого вызова.
	Geocode(name string) (point Point, found bool, err error)
}
