package stats

import "github.com/sirgallo/grsfs/pkg/utils"


func EncodeStatObjectToBytes(statObj Stats) ([]byte, error) {
	return utils.EncodeStructToBytes[Stats](statObj)
}

func DecodeBytesToStatObject(statAsBytes []byte) (*Stats, error) {
	return utils.DecodeBytesToStruct[Stats](statAsBytes)
}
