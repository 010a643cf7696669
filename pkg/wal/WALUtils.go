package wal

import "encoding/binary"


//=========================================== Write Ahead Log Utils


/*
	Convert Int To Bytes
		big endian keys so bolt's byte ordering matches step ordering
*/

func ConvertIntToBytes(val int64) []byte {
	byteArray := make([]byte, 8)
	binary.BigEndian.PutUint64(byteArray, uint64(val))

	return byteArray
}

func ConvertBytesToInt(byteArray []byte) int64 {
	if len(byteArray) != 8 { return 0 }
	return int64(binary.BigEndian.Uint64(byteArray))
}
