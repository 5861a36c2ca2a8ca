// @title           Document Processor API
// @version         1.0
// @description     This API handles asynchronous PDF ingestion and RAG chat over the extracted text.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email   ank.github@gmail.com

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package utils

//run redis
//docker run -p 6379:6379 -d redis

//run postgres with pgvector
//docker run -p 5432:5432 -e POSTGRES_USER=docuser -e POSTGRES_DB=document_processor -e POSTGRES_HOST_AUTH_METHOD=trust -d pgvector/pgvector:pg16

//run minio
//docker run -p 9000:9000 -p 9001:9001 -d minio/minio server /data --console-address ":9001"

//swagger init
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs
