package network

import "github.com/BrandonDHaskell/Vigil/internal/vigil/types"

// DefaultAccessPoints is the deployed AP table along the line.
func DefaultAccessPoints() []types.AccessPoint {
	return []types.AccessPoint{
		{ID: "AP-1", Name: "São Paulo-Morumbi e Jardim Guedala", Coord: types.Coordinate{Lat: -23.5995, Lon: -46.7152}, HardwareID: "7A:37:16:2B:8D:5D"},
		{ID: "AP-2", Name: "Jardim Guedala e Morumbi", Coord: types.Coordinate{Lat: -23.6050, Lon: -46.7140}, HardwareID: "02:9B:CD:05:1E:BE"},
		{ID: "AP-3", Name: "Morumbi e Paraisópolis", Coord: types.Coordinate{Lat: -23.6120, Lon: -46.7135}, HardwareID: "68:D4:0C:D5:2D:9F"},
		{ID: "AP-4", Name: "Paraisópolis e Américo Maurano", Coord: types.Coordinate{Lat: -23.6225, Lon: -46.7136}, HardwareID: "C4:6E:1F:95:82:A7"},
		{ID: "AP-5", Name: "Vila Andrade e Jardim Jussara", Coord: types.Coordinate{Lat: -23.6375, Lon: -46.7120}, HardwareID: "58:10:8C:96:6C:76"},
	}
}

func DefaultStations() []types.Station {
	return []types.Station{
		{Name: "São Paulo-Morumbi", Coord: types.Coordinate{Lat: -23.5981, Lon: -46.7160}},
		{Name: "Jardim Guedala", Coord: types.Coordinate{Lat: -23.6017, Lon: -46.7145}},
		{Name: "Morumbi", Coord: types.Coordinate{Lat: -23.6095, Lon: -46.7132}},
		{Name: "Paraisópolis", Coord: types.Coordinate{Lat: -23.6175, Lon: -46.7142}},
		{Name: "Américo Maurano", Coord: types.Coordinate{Lat: -23.6260, Lon: -46.7138}},
		{Name: "Vila Andrade", Coord: types.Coordinate{Lat: -23.6331, Lon: -46.7135}},
		{Name: "Jardim Jussara", Coord: types.Coordinate{Lat: -23.6410, Lon: -46.7115}},
	}
}

// DefaultAliases maps firmware client ids to agent display names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"ESP32C6_1": "Agente_1",
		"ESP32C6_2": "Agente_2",
		"ESP32C6_3": "Agente_3",
		"ESP32C6_4": "Agente_4",
	}
}
