package main

import "bytes"
import "encoding/json"
import "flag"
import "io"
import "net/http"
import "sync"
import "time"

import "github.com/sirgallo/grsfs/pkg/httpservice"
import "github.com/sirgallo/grsfs/pkg/logger"
import "github.com/sirgallo/grsfs/pkg/utils"


const NAME = "Simulate Client"
var Log = clog.NewCustomLog(NAME)

const CONTENT_TYPE = "application/json"


/*
	drive the command route of a master with concurrent writers
		each writer creates its own directory and keeps writing random hashes into files under it,
		reading every file back to check the master serves what it accepted
*/

func main() {
	target := flag.String("target", "http://localhost:8080", "base url of the node http service")
	writers := flag.Int("writers", 16, "number of concurrent writers")
	iterations := flag.Int("iterations", 100, "writes per writer")
	flag.Parse()

	client := &http.Client{ Timeout: 10 * time.Second }
	url := *target + httpservice.CommandRoute

	send := func(request httpservice.CommandRequest) *httpservice.CommandResponse {
		requestJSON, encErr := json.Marshal(request)
		if encErr != nil { Log.Fatal("failed to encode request to json", encErr.Error()) }

		r, respErr := client.Post(url, CONTENT_TYPE, bytes.NewBuffer(requestJSON))
		if respErr != nil { Log.Fatal(respErr.Error()) }
		defer r.Body.Close()

		if r.StatusCode != http.StatusOK {
			responseBody, _ := io.ReadAll(r.Body)
			Log.Warn("status not 200", string(responseBody))
			return nil
		}

		var response httpservice.CommandResponse
		decodeErr := json.NewDecoder(r.Body).Decode(&response)
		if decodeErr != nil { Log.Fatal("failed to decode response", decodeErr.Error()) }

		return &response
	}

	var clientWG sync.WaitGroup

	for writer := 0; writer < *writers; writer++ {
		clientWG.Add(1)

		go func() {
			defer clientWG.Done()

			dir, hashErr := utils.GenerateRandomSHA256Hash()
			if hashErr != nil { Log.Fatal("failed to generate directory name:", hashErr.Error()) }

			dir = "/" + dir[:12]
			send(httpservice.CommandRequest{ Op: "mkdir", Path: dir, Mode: 0755 })

			for idx := 0; idx < *iterations; idx++ {
				value, valueErr := utils.GenerateRandomSHA256Hash()
				if valueErr != nil { Log.Fatal("failed to generate value:", valueErr.Error()) }

				path := dir + "/" + value[:8]

				written := send(httpservice.CommandRequest{ Op: "write", Path: path, Data: value })
				if written == nil || written.Errno != 0 {
					Log.Warn("write to", path, "refused:", written)
					continue
				}

				read := send(httpservice.CommandRequest{ Op: "read", Path: path, Length: int64(len(value)) })
				if read == nil || read.Errno != 0 || string(read.Result.Data) != value { Log.Error("read back mismatch on", path) }
			}
		}()
	}

	clientWG.Wait()
	Log.Info("simulation finished")
}
