package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newestFirst orders listings by creation time, ties broken by id
var newestFirst = bson.D{{Key: "case.createdAt", Value: -1}, {Key: "_id", Value: -1}}

// pageOptions returns the skip and limit for a 1-based page
func pageOptions(page, limit int, sort bson.D) *options.FindOptions {
	l := int64(limit)
	skip := int64(page-1) * l
	return options.Find().SetLimit(l).SetSkip(skip).SetSort(sort)
}
