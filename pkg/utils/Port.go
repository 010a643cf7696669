package utils

import "strconv"


/*
	Normalize Port
		turn an integer port into the ":<port>" listen form used by net.Listen and http
*/

func NormalizePort(port int) string {
	return ":" + strconv.Itoa(port)
}

func GetZero [T any]() T {
	var result T
	return result
}
